package entity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmountValue(t *testing.T) {
	d, err := ParseAmountValue("+100452870470097742390")
	require.NoError(t, err)
	assert.Equal(t, "100452870470097742390", d.String())

	d, err = ParseAmountValue("-42")
	require.NoError(t, err)
	assert.Equal(t, "-42", d.String())

	d, err = ParseAmountValue(" 7 ")
	require.NoError(t, err)
	assert.Equal(t, "7", d.String())

	for _, bad := range []string{"", "+", "1.5", "12abc", "0x10"} {
		_, err := ParseAmountValue(bad)
		assert.Error(t, err, bad)
	}
}

func TestCollateralTypeFromBrand(t *testing.T) {
	ct, ok := CollateralTypeFromBrand("$1.Alleged: stATOM brand")
	require.True(t, ok)
	assert.Equal(t, CollateralType("statom"), ct)

	_, ok = CollateralTypeFromBrand("$1")
	assert.False(t, ok)
}

func TestStoragePath(t *testing.T) {
	p := StoragePath("published.vaultFactory.managers")
	child := p.Indexed("manager", 0).Child("vaults")
	assert.Equal(t, StoragePath("published.vaultFactory.managers.manager0.vaults"), child)
	assert.Equal(t, StoragePath("published"), StoragePath("").Child("published"))
}

func TestStorageQuery_ABCIPath(t *testing.T) {
	assert.Equal(t, "/custom/vstorage/data/published.reserve.metrics", DataQuery("published.reserve.metrics").ABCIPath())
	assert.Equal(t, "/custom/vstorage/children/published.psm.IST", ChildrenQuery("published.psm.IST").ABCIPath())
	assert.NotEqual(t, DataQuery("a").CacheKey(), ChildrenQuery("a").CacheKey())
}

func TestStorageNode_Missing(t *testing.T) {
	assert.True(t, StorageNode{}.Missing(QueryData))
	assert.True(t, StorageNode{}.Missing(QueryChildren))
	assert.False(t, StorageNode{Children: []string{}}.Missing(QueryChildren))
	assert.True(t, StorageNode{Children: []string{}}.Missing(QueryData))
	assert.False(t, StorageNode{Value: "x"}.Missing(QueryData))
}

func TestTransportError_Temporary(t *testing.T) {
	cases := map[string]struct {
		err  *TransportError
		want bool
	}{
		"network":    {&TransportError{Err: errors.New("reset")}, true},
		"rate limit": {&TransportError{StatusCode: 429}, true},
		"server":     {&TransportError{StatusCode: 503}, true},
		"client":     {&TransportError{StatusCode: 404}, false},
		"abci code":  {&TransportError{Code: 38}, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Temporary())
			assert.Equal(t, tc.want, IsRetryable(fmt.Errorf("wrapped: %w", tc.err)))
		})
	}
	assert.False(t, IsRetryable(ErrNotFound))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("published.x: %w", ErrNotFound)))
	assert.False(t, IsNotFound(ErrShape))
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" PSM ")
	require.NoError(t, err)
	assert.Equal(t, CategoryPSM, c)
	_, err = ParseCategory("amm")
	assert.Error(t, err)
}

func TestPSMMetrics_Field(t *testing.T) {
	m := PSMMetrics{AnchorPoolBalance: &Amount{Value: "+1"}, MintedPoolBalance: &Amount{Value: "+2"}}
	assert.Equal(t, "+1", m.Field("anchorPoolBalance").Value)
	assert.Equal(t, "+2", m.Field("mintedPoolBalance").Value)
	assert.Nil(t, m.Field("feePoolBalance"))
	assert.Nil(t, m.Field("unknown"))
}

func TestTransportError_Error(t *testing.T) {
	err := &TransportError{Op: "abci_query", Path: "/custom/vstorage/data/x", StatusCode: 502, Err: errors.New("bad gateway")}
	assert.Equal(t, "abci_query /custom/vstorage/data/x: status 502: bad gateway", err.Error())
	de := &DecodeError{Stage: "body", Err: errors.New("eof")}
	assert.Equal(t, "decode body: eof", de.Error())
}
