package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryExpiredAt(t *testing.T) {
	entry := NewEntry("file:///test", "/.ust_cache/1", 1591880020, 60)

	testCases := []struct {
		name    string
		now     int64
		expired bool
	}{
		{"well past ttl", 1591880120, true},
		{"inside ttl", 1591880079, false},
		{"exactly ttl", 1591880080, false},
		{"one second past ttl", 1591880081, true},
		{"clock behind timestamp", 1591880000, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expired, entry.ExpiredAt(time.Unix(tc.now, 0)))
		})
	}
}

func TestEntryIsExpiredUsesWallClock(t *testing.T) {
	old := NewEntry("file:///test", "/.ust_cache/1", 1591880020, 60)
	assert.True(t, old.IsExpired())

	fresh := NewEntry("file:///test", "/.ust_cache/1", time.Now().Unix(), 3600)
	assert.False(t, fresh.IsExpired())
}

func TestEntryExpiresAt(t *testing.T) {
	entry := NewEntry("file:///test", "/.ust_cache/1", 1591880020, 60)
	assert.Equal(t, time.Unix(1591880080, 0).UTC(), entry.ExpiresAt())
	assert.Equal(t, int64(100), entry.Age(time.Unix(1591880120, 0)))
}

func TestEntryFromMapRoundTrip(t *testing.T) {
	entry := NewEntry("file:///test", "/.ust_cache/1", 1591880020, 60)

	data, err := json.Marshal(entry)
	require.NoError(t, err)
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var fields map[string]interface{}
	require.NoError(t, decoder.Decode(&fields))

	got, err := EntryFromMap(fields)
	require.NoError(t, err)
	assert.Equal(t, entry, got)
}

func TestEntryFromMapAcceptsNativeIntegers(t *testing.T) {
	got, err := EntryFromMap(map[string]interface{}{
		"url":       "file:///test",
		"path":      "/.ust_cache/1",
		"timestamp": int64(1591880020),
		"ttl":       60,
	})
	require.NoError(t, err)
	assert.Equal(t, NewEntry("file:///test", "/.ust_cache/1", 1591880020, 60), got)
}

func TestEntryFromMapMissingKey(t *testing.T) {
	for _, key := range entryKeys {
		t.Run(key, func(t *testing.T) {
			fields := map[string]interface{}{
				"url":       "file:///test",
				"path":      "/.ust_cache/1",
				"timestamp": json.Number("1591880020"),
				"ttl":       json.Number("60"),
			}
			delete(fields, key)

			_, err := EntryFromMap(fields)
			var keyErr *MissingKeyError
			require.ErrorAs(t, err, &keyErr)
			assert.Equal(t, key, keyErr.Key)
			assert.EqualError(t, err, "missing key '"+key+"'")
		})
	}
}

func TestEntryFromMapReportsFirstMissingKey(t *testing.T) {
	_, err := EntryFromMap(map[string]interface{}{"ttl": json.Number("60")})
	assert.EqualError(t, err, "missing key 'url'")
}

func TestEntryFromMapTypeErrors(t *testing.T) {
	base := func() map[string]interface{} {
		return map[string]interface{}{
			"url":       "file:///test",
			"path":      "/.ust_cache/1",
			"timestamp": json.Number("1591880020"),
			"ttl":       json.Number("60"),
		}
	}
	testCases := []struct {
		name  string
		key   string
		value interface{}
	}{
		{"numeric url", "url", json.Number("7")},
		{"null path", "path", nil},
		{"string timestamp", "timestamp", "yesterday"},
		{"fractional ttl", "ttl", json.Number("1.5")},
		{"object ttl", "ttl", map[string]interface{}{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fields := base()
			fields[tc.key] = tc.value

			_, err := EntryFromMap(fields)
			var typeErr *FieldTypeError
			require.ErrorAs(t, err, &typeErr)
			assert.False(t, errors.As(err, new(*MissingKeyError)))
		})
	}
}
