package accounts

import (
	"context"
	"fmt"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/uptrace/bun"
)

// employeeIDPattern is the canonical shape: two letter org prefix, four
// digit year, four digit per-year sequence. Example: TG-2025-0043.
var employeeIDPattern = regexp.MustCompile(`^[A-Z]{2}-\d{4}-\d{4}$`)

// DefaultEmployeeIDPrefix is the org prefix stamped on generated ids.
var DefaultEmployeeIDPrefix = "TG"

// ValidateEmployeeID checks an id against the canonical format.
func ValidateEmployeeID(id string) error {
	err := validation.Validate(id,
		validation.Required,
		validation.Match(employeeIDPattern),
	)
	if err != nil {
		return ErrEmployeeIDFormat.WithMetadata(map[string]any{
			"employee_id": id,
		})
	}
	return nil
}

// FormatEmployeeID renders a prefix, year and sequence as a canonical id.
func FormatEmployeeID(prefix string, year, sequence int) string {
	return fmt.Sprintf("%s-%04d-%04d", prefix, year, sequence)
}

// NextEmployeeID assigns the next id in the prefix/year sequence. Given
// TG-2025-0041 and TG-2025-0042 on record, the next id is TG-2025-0043.
// Use NextEmployeeIDTx when the id is assigned alongside a profile insert.
func NextEmployeeID(ctx context.Context, profiles Profiles, prefix string, year int) (string, error) {
	prefix, year = employeeIDDefaults(prefix, year)

	seq, err := profiles.MaxEmployeeSequence(ctx, prefix, year)
	if err != nil {
		return "", err
	}

	return employeeIDForSequence(prefix, year, seq+1)
}

// NextEmployeeIDTx assigns the next id inside tx. It must share the
// transaction with the profile insert so concurrent registrations cannot
// claim the same sequence number.
func NextEmployeeIDTx(ctx context.Context, tx bun.IDB, profiles Profiles, prefix string, year int) (string, error) {
	prefix, year = employeeIDDefaults(prefix, year)

	seq, err := profiles.MaxEmployeeSequenceTx(ctx, tx, prefix, year)
	if err != nil {
		return "", err
	}

	return employeeIDForSequence(prefix, year, seq+1)
}

func employeeIDDefaults(prefix string, year int) (string, int) {
	if prefix == "" {
		prefix = DefaultEmployeeIDPrefix
	}
	if year == 0 {
		year = time.Now().Year()
	}
	return prefix, year
}

func employeeIDForSequence(prefix string, year, sequence int) (string, error) {
	id := FormatEmployeeID(prefix, year, sequence)
	if err := ValidateEmployeeID(id); err != nil {
		return "", err
	}
	return id, nil
}
