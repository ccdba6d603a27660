package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAttributeForm(t *testing.T) {
	t.Parallel()
	assert.True(t, IsAttributeForm("server=127.0.0.1;port=3306;"))
	assert.True(t, IsAttributeForm("Data Source=/tmp/x.db"))
	assert.True(t, IsAttributeForm("  user id = sa;"))
	assert.False(t, IsAttributeForm("root:123456@tcp(127.0.0.1:3306)/mysql?charset=utf8mb4&loc=Local"))
	assert.False(t, IsAttributeForm("root@tcp(127.0.0.1:3306)/mysql"))
	assert.False(t, IsAttributeForm("postgres://u:p@host/db"))
	assert.False(t, IsAttributeForm("/tmp/app.db"))
}

func TestParseAttributes(t *testing.T) {
	t.Parallel()
	attrs := ParseAttributes(" Server = db1 ;Port=3306;;junk;UID=root;pwd=a=b;")

	assert.Equal(t, Attributes{
		{Key: "server", Value: "db1"},
		{Key: "port", Value: "3306"},
		{Key: "uid", Value: "root"},
		{Key: "pwd", Value: "a=b"},
	}, attrs)

	v, ok := attrs.Get("SERVER")
	assert.True(t, ok)
	assert.Equal(t, "db1", v)

	_, ok = attrs.Get("database")
	assert.False(t, ok)
	assert.Equal(t, "root", attrs.First("user id", "uid"))
}

func TestFormatAttributes_CanonicalOrder(t *testing.T) {
	t.Parallel()
	attrs := Attributes{
		{Key: "charset", Value: "utf8mb4"},
		{Key: "pwd", Value: "p"},
		{Key: "server", Value: "h"},
		{Key: "uid", Value: "u"},
		{Key: "database", Value: "d"},
		{Key: "port", Value: "1"},
	}
	assert.Equal(t, "server=h;port=1;database=d;uid=u;pwd=p;charset=utf8mb4;", FormatAttributes(attrs))
}
