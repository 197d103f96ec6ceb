package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		line     string
		wantName string
		want     Condition
	}{
		{"stdbool", "stdbool", Always},
		{"malloc-posix [test $REPLACE_MALLOC = 1]", "malloc-posix", Expression("test $REPLACE_MALLOC = 1")},
		{"fstat   [test $REPLACE_FSTAT = 1]", "fstat", Condition{Kind: Expr, Expr: "test $REPLACE_FSTAT = 1"}},
		{"foo [true]", "foo", Always},
		{"foo [test $X = 1", "foo", Expression("test $X = 1")},
		{"foo[]", "foo", Always},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			name, cond := Split(tt.line)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.want, cond)
		})
	}
}

func TestStripSuffix(t *testing.T) {
	assert.Equal(t, "fstat", StripSuffix("fstat [test $REPLACE_FSTAT = 1]"))
	assert.Equal(t, "fstat", StripSuffix("fstat"))
}

func TestCondition_String(t *testing.T) {
	assert.Equal(t, "", Always.String())
	assert.Equal(t, "true", ParentEnabled.String())
	assert.Equal(t, "test $X = 1", Expression("test $X = 1").String())
	assert.True(t, Expression("true").IsAlways())
	assert.False(t, ParentEnabled.IsAlways())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(Always))
	assert.NoError(t, Validate(ParentEnabled))
	assert.NoError(t, Validate(Expression("test $REPLACE_FSTAT = 1")))
	assert.NoError(t, Validate(Expression(`test "$gl_cv_func_x" != yes || test $HAVE_Y = 0`)))
	assert.Error(t, Validate(Expression("test $X = 1 &&")))
	assert.Error(t, Validate(Expression("if then")))
}
