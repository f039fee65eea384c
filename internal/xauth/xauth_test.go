package xauth

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(family uint16, addr, disp, method string, data []byte) []byte {
	var out []byte
	fam := make([]byte, 2)
	binary.BigEndian.PutUint16(fam, family)
	out = append(out, fam...)
	out = append(out, encodeString([]byte(addr))...)
	out = append(out, encodeString([]byte(disp))...)
	out = append(out, encodeString([]byte(method))...)
	out = append(out, encodeString(data)...)
	return out
}

func TestParseSingleRecord(t *testing.T) {
	raw := record(FamilyLocal, "myhost", "0", "MIT-MAGIC-COOKIE-1", []byte{1, 2, 3, 4})
	entries, err := parse(raw)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "myhost", entries[0].Address)
	assert.Equal(t, "MIT-MAGIC-COOKIE-1", entries[0].Method)
	assert.Equal(t, []byte{1, 2, 3, 4}, entries[0].Data)
}

func TestParseMultipleRecordsConcatenated(t *testing.T) {
	raw := append(record(0, "10.0.0.1", "0", "", nil), record(FamilyLocal, "myhost", "1", "MIT-MAGIC-COOKIE-1", []byte{9})...)
	entries, err := parse(raw)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint16(0), entries[0].Family)
	assert.Equal(t, uint16(FamilyLocal), entries[1].Family)
}

func TestFindLocalMatchesFamilyAddressAndDisplay(t *testing.T) {
	entries := []Entry{
		{Family: 0, Address: "myhost", Display: "0"},
		{Family: FamilyLocal, Address: "myhost", Display: "0", Method: "MIT-MAGIC-COOKIE-1", Data: []byte{1}},
	}
	e, ok := FindLocal(entries, "myhost", "0")
	require.True(t, ok)
	assert.Equal(t, "MIT-MAGIC-COOKIE-1", e.Method)
}

func TestFindLocalNoMatch(t *testing.T) {
	_, ok := FindLocal(nil, "myhost", "0")
	assert.False(t, ok)
}

func TestEncodeRewritesHostnameAndDisplay(t *testing.T) {
	e := Entry{Family: FamilyLocal, Address: "realhost", Display: "0", Method: "MIT-MAGIC-COOKIE-1", Data: []byte{7, 7}}
	encoded := Encode(e, "fakehost", "1")

	entries, err := parse(encoded)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fakehost", entries[0].Address)
	assert.Equal(t, "1", entries[0].Display)
	assert.Equal(t, []byte{7, 7}, entries[0].Data)
}
