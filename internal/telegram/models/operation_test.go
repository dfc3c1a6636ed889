package models

import (
	"testing"
	"time"
)

func TestOperationStatementLine(t *testing.T) {
	createdAt := time.Date(2024, time.March, 5, 9, 7, 0, 0, time.UTC)

	tests := []struct {
		name string
		op   Operation
		loc  *time.Location
		want string
	}{
		{
			name: "income",
			op:   Operation{Size: 150, Description: "Weekly shop", CreatedAt: createdAt},
			want: "05.03 09:07: +150 - Weekly shop",
		},
		{
			name: "expense",
			op:   Operation{Size: -20, Description: "Coffee", CreatedAt: createdAt},
			want: "05.03 09:07: -20 - Coffee",
		},
		{
			name: "converted to location",
			op:   Operation{Size: 1, CreatedAt: createdAt},
			loc:  time.FixedZone("UTC+3", 3*60*60),
			want: "05.03 12:07: +1 - ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op.StatementLine(tt.loc); got != tt.want {
				t.Fatalf("StatementLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIdempotencyKeyFor(t *testing.T) {
	if got := IdempotencyKeyFor(-100123, 0); got != "" {
		t.Fatalf("expected empty key without message id, got %q", got)
	}
	if got := IdempotencyKeyFor(-100123, 42); got != "-100123:42" {
		t.Fatalf("unexpected key: %q", got)
	}
}
