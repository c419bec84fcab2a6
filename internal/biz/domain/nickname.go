package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// LabelSeparator joins the base label and the real name
const LabelSeparator = " | "

// DefaultMaxLabelLength is the platform's nickname ceiling
const DefaultMaxLabelLength = 32

var separatorLength = utf8.RuneCountInString(LabelSeparator)

// CheckNameFits reports ErrNameTooLong when the separator plus realName
// alone exceeds maxLength.
func CheckNameFits(realName string, maxLength int) error {
	suffixLength := separatorLength + utf8.RuneCountInString(realName)
	if suffixLength > maxLength {
		return fmt.Errorf("%w: %d characters needed, limit is %d", ErrNameTooLong, suffixLength, maxLength)
	}
	return nil
}

// FormatNickname builds "<base> | <realName>", truncating base from the end
// so the result stays within maxLength characters. The real name is never
// dropped: if it cannot fit, ErrNameTooLong is returned.
//
// base must not already carry a separator; use BaseLabel on observed labels.
func FormatNickname(base, realName string, maxLength int) (string, error) {
	if err := CheckNameFits(realName, maxLength); err != nil {
		return "", err
	}

	budget := maxLength - separatorLength - utf8.RuneCountInString(realName)
	return truncateRunes(base, budget) + LabelSeparator + realName, nil
}

// BaseLabel returns the part of label before the first separator, or the
// whole label when there is none.
func BaseLabel(label string) string {
	if i := strings.Index(label, LabelSeparator); i >= 0 {
		return label[:i]
	}
	return label
}

// SuffixName returns the trimmed segment after the first separator, up to the
// next one. ok is false when the label has no separator or the segment is blank.
func SuffixName(label string) (name string, ok bool) {
	parts := strings.Split(label, LabelSeparator)
	if len(parts) < 2 {
		return "", false
	}
	name = strings.TrimSpace(parts[1])
	return name, name != ""
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
