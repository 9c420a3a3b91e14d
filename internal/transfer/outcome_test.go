package transfer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindIntegrity, kindOf(fmt.Errorf("wrap: %w", &IntegrityError{})))
	assert.Equal(t, KindLocalIO, kindOf(&LocalIOError{Op: "writing", Err: errors.New("no space left on device")}))
	assert.Equal(t, KindTransfer, kindOf(errors.New("HTTP 503")))
}

func TestReport_CountsAndLookup(t *testing.T) {
	r := &Report{Outcomes: []Outcome{
		{AssetID: "a", Status: StatusSuccess, BytesWritten: 10},
		{AssetID: "b", Status: StatusSkipped},
		{AssetID: "c", Status: StatusFailed, Err: errors.New("boom")},
		{AssetID: "d", Status: StatusSuccess, BytesWritten: 5},
	}}

	succeeded, skipped, failed := r.Counts()
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 1, failed)
	assert.True(t, r.HasFailures())
	assert.Equal(t, int64(15), r.BytesWritten())

	c, ok := r.Lookup("c")
	assert.True(t, ok)
	assert.Equal(t, "boom", c.Reason())

	_, ok = r.Lookup("zzz")
	assert.False(t, ok)
}

func TestIntegrityError_Messages(t *testing.T) {
	size := &IntegrityError{Path: "f", ExpectedSize: 10, ActualSize: 9}
	assert.Contains(t, size.Error(), "size mismatch")

	sum := &IntegrityError{Path: "f", Algorithm: "MD5", Expected: "aa", Actual: "bb"}
	assert.Contains(t, sum.Error(), "MD5 checksum mismatch")
}
