package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "dsn with params",
			in:   "root:123456@tcp(127.0.0.1:3306)/mysql?charset=utf8mb4&loc=Local",
			want: "server=127.0.0.1;port=3306;database=mysql;uid=root;pwd=123456;",
		},
		{
			name: "dsn without password",
			in:   "app@tcp(db.internal:3307)/orders",
			want: "server=db.internal;port=3307;database=orders;uid=app;pwd=;",
		},
		{
			name: "attribute form passes through",
			in:   "server=127.0.0.1;port=3306;database=mysql;uid=root;pwd=123456;",
			want: "server=127.0.0.1;port=3306;database=mysql;uid=root;pwd=123456;",
		},
		{
			name: "attribute form keeps its own order and spacing",
			in:   "Uid=root; Server=h;Database=d",
			want: "Uid=root; Server=h;Database=d",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
