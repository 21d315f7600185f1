package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigits(t *testing.T) {
	cases := map[string]string{
		"123.456.789-01": "12345678901",
		"12345678901":    "12345678901",
		" 01234-567 ":    "01234567",
		"":               "",
		"abc":            "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Digits(in), in)
	}
}

func TestValidCPF(t *testing.T) {
	assert.True(t, ValidCPF("12345678901"))
	assert.True(t, ValidCPF("123.456.789-01"))
	assert.False(t, ValidCPF("1234567890"))
	assert.False(t, ValidCPF("123456789012"))
	assert.False(t, ValidCPF("1234567890a"))
	assert.False(t, ValidCPF(""))
}

func TestCPFIsIdenticalAcrossFormats(t *testing.T) {
	assert.Equal(t, CPF("123.456.789-01"), CPF("12345678901"))
}

func TestZipCode(t *testing.T) {
	assert.Equal(t, "01234567", ZipCode("01234-567"))
	assert.True(t, ValidZipCode("01234-567"))
	assert.False(t, ValidZipCode("0123-567"))
	assert.Equal(t, "01234", ZipPrefix("01234-567"))
	assert.Equal(t, "", ZipPrefix("012"))
}

func TestDate(t *testing.T) {
	d, ok := Date(" 1990-05-15 ")
	assert.True(t, ok)
	assert.Equal(t, "1990-05-15", d)

	_, ok = Date("15/05/1990")
	assert.False(t, ok)

	_, ok = Date("1990-02-30")
	assert.False(t, ok)
}
