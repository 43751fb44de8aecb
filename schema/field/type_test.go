package field_test

import (
	"strconv"
	"testing"

	"github.com/syssam/quarry/schema/field"

	"github.com/stretchr/testify/assert"
)

func TestType(t *testing.T) {
	assert.False(t, field.TypeInvalid.Valid())
	assert.True(t, field.TypeString.Valid())
	assert.Equal(t, "invalid", field.Type(200).String())
	assert.Equal(t, "invalid", field.Type(200).ConstName())
	assert.Equal(t, "int64", field.TypeInt64.String())
	assert.Equal(t, "TypeInt64", field.TypeInt64.ConstName())
	assert.Equal(t, "time.Time", field.TypeTime.String())

	assert.True(t, field.TypeInt8.Numeric())
	assert.True(t, field.TypeFloat64.Numeric())
	assert.False(t, field.TypeString.Numeric())
	assert.True(t, field.TypeUint64.Integer())
	assert.False(t, field.TypeFloat32.Integer())
	assert.True(t, field.TypeFloat32.Float())
}

func TestType_Quotable(t *testing.T) {
	tests := []struct {
		typ  field.Type
		want bool
	}{
		{field.TypeInt, false},
		{field.TypeInt64, false},
		{field.TypeUint8, false},
		{field.TypeBool, false},
		{field.TypeFloat64, true},
		{field.TypeString, true},
		{field.TypeEnum, true},
		{field.TypeTime, true},
		{field.TypeJSON, true},
		{field.TypeUUID, true},
		{field.TypeInvalid, false},
	}
	for _, tt := range tests {
		t.Run(tt.typ.ConstName(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.Quotable())
		})
	}
}

func TestParseType(t *testing.T) {
	assert.Equal(t, field.TypeInt64, field.ParseType("int64"))
	assert.Equal(t, field.TypeInt, field.ParseType(" Integer "))
	assert.Equal(t, field.TypeTime, field.ParseType("datetime"))
	assert.Equal(t, field.TypeFloat64, field.ParseType("float"))
	assert.Equal(t, field.TypeString, field.ParseType("password"))
	assert.Equal(t, field.TypeInvalid, field.ParseType("decimal128"))
}

func TestFromPhysical(t *testing.T) {
	tests := []struct {
		in   string
		want field.Type
	}{
		{"INT(11) UNSIGNED", field.TypeInt},
		{"bigint", field.TypeInt64},
		{"TINYINT(1)", field.TypeInt},
		{"BOOLEAN", field.TypeBool},
		{"DECIMAL(10,2)", field.TypeFloat64},
		{"DOUBLE", field.TypeFloat64},
		{"VARCHAR(255)", field.TypeString},
		{"TEXT", field.TypeString},
		{"ENUM", field.TypeString},
		{"TIME", field.TypeString},
		{"DATETIME", field.TypeTime},
		{"TIMESTAMP", field.TypeTime},
		{"DATE", field.TypeTime},
		{"BLOB", field.TypeBytes},
		{"VARBINARY(16)", field.TypeBytes},
		{"bytea", field.TypeBytes},
		{"json", field.TypeJSON},
		{"uuid", field.TypeUUID},
		{"", field.TypeString},
		{"GEOMETRY", field.TypeString},
	}
	for i, tt := range tests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			assert.Equal(t, tt.want, field.FromPhysical(tt.in), tt.in)
		})
	}
}
