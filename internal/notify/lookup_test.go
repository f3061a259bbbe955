package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/adnotify/internal/ldap"
	"github.com/KilimcininKorOglu/adnotify/internal/session"
)

type fakeSearcher struct {
	entries []*ldap.SearchResultEntry
	err     error
	got     *session.SearchRequest
}

func (f *fakeSearcher) Search(ctx context.Context, req *session.SearchRequest) ([]*ldap.SearchResultEntry, error) {
	f.got = req
	return f.entries, f.err
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name     string
		searcher *fakeSearcher
		wantErr  error
		wantVals [][]byte
	}{
		{
			name:     "existing A record",
			searcher: &fakeSearcher{entries: []*ldap.SearchResultEntry{entry(targetX, dnsRecord(recordA))}},
			wantVals: [][]byte{recordA},
		},
		{
			name:     "no such object",
			searcher: &fakeSearcher{err: &ldap.ResultError{Code: ldap.ResultNoSuchObject}},
			wantErr:  ErrNoSuchObject,
		},
		{
			name:     "null response",
			searcher: &fakeSearcher{},
			wantErr:  ErrNoReadableAttributes,
		},
		{
			name:     "entry without attributes",
			searcher: &fakeSearcher{entries: []*ldap.SearchResultEntry{entry(targetX)}},
			wantErr:  ErrNoReadableAttributes,
		},
		{
			name:     "access denied",
			searcher: &fakeSearcher{err: &ldap.ResultError{Code: ldap.ResultInsufficientAccessRights}},
			wantErr:  ErrNoReadableAttributes,
		},
		{
			name:     "connection lost",
			searcher: &fakeSearcher{err: session.ErrConnClosed},
			wantErr:  session.ErrConnClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lookup(context.Background(), tt.searcher, targetX, []string{"dnsRecord", "dnsRecord"})

			req := tt.searcher.got
			require.NotNil(t, req)
			assert.Equal(t, targetX, req.BaseDN)
			assert.Equal(t, ldap.ScopeBaseObject, req.Scope)
			assert.Equal(t, []string{"dnsRecord"}, req.Attributes)
			assert.Empty(t, req.Controls)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, targetX, got.DN)
			assert.Equal(t, tt.wantVals, got.Values("dnsRecord"))
		})
	}
}

func TestLookupErrorsAreDistinct(t *testing.T) {
	_, missing := Lookup(context.Background(), &fakeSearcher{err: &ldap.ResultError{Code: ldap.ResultNoSuchObject}}, targetX, nil)
	_, unreadable := Lookup(context.Background(), &fakeSearcher{}, targetX, nil)

	assert.True(t, errors.Is(missing, ErrNoSuchObject))
	assert.False(t, errors.Is(missing, ErrNoReadableAttributes))
	assert.True(t, errors.Is(unreadable, ErrNoReadableAttributes))
	assert.False(t, errors.Is(unreadable, ErrNoSuchObject))
}
