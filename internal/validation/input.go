package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinUsernameLength       = 3
	MaxUsernameLength       = 30
	MinTitleLength          = 3
	MaxTitleLength          = 200
	MinDescriptionLength    = 10
	MaxDescriptionLength    = 5000
	MinNoteContentLength    = 1
	MaxNoteContentLength    = 5000
	MinResolutionTextLength = 1
	MaxResolutionTextLength = 5000
	MaxEvidenceRefs         = 20
	MaxEvidenceRefLength    = 500
	MinPasswordLength       = 8
	MaxPasswordLength       = 128
)

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateLength проверяет длину строки в рунах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRegexp.MatchString(email) {
		return fmt.Errorf("некорректный формат email")
	}
	return nil
}

// ValidatePassword проверяет длину пароля.
func ValidatePassword(password string) error {
	return ValidateLength("пароль", password, MinPasswordLength, MaxPasswordLength)
}

// ValidateEvidenceRefs проверяет количество и длину ссылок на доказательства.
// Сами ссылки непрозрачны: доступность и содержимое не проверяются.
func ValidateEvidenceRefs(refs []string) error {
	if len(refs) > MaxEvidenceRefs {
		return fmt.Errorf("не более %d ссылок на доказательства", MaxEvidenceRefs)
	}
	for _, ref := range refs {
		if strings.TrimSpace(ref) == "" {
			return fmt.Errorf("ссылка на доказательство не может быть пустой")
		}
		if utf8.RuneCountInString(ref) > MaxEvidenceRefLength {
			return fmt.Errorf("ссылка на доказательство должна быть не более %d символов", MaxEvidenceRefLength)
		}
	}
	return nil
}
