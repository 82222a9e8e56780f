package store

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Lllllllleong/waterqualityflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// jsonDoc decodes a JSON body the way a snapshot decodes its fields.
type jsonDoc string

func (d jsonDoc) DataTo(p interface{}) error { return json.Unmarshal([]byte(d), p) }

func TestDecodeEventsCountsUndecodable(t *testing.T) {
	docs := []storedDoc{
		{id: "a", path: "clientes/acme/monitoreos/a", data: jsonDoc(`{"cliente":"Acme","parametros":[{"parametro":"pH","valor":7.1}]}`)},
		{id: "b", path: "clientes/acme/monitoreos/b", data: jsonDoc(`{"cliente":42}`)},
		{id: "c", path: "clientes/sur/monitoreos/c", data: jsonDoc(`{"id":"c","cliente":"Sur"}`)},
	}

	events, skipped := decodeEvents(docs)
	assert.Equal(t, 1, skipped)
	require.Len(t, events, 2)

	assert.Equal(t, "a", events[0].ID)
	assert.Equal(t, 1, events[0].ParameterCount)
	assert.Equal(t, []models.ParameterMeasurement{}, events[1].Parameters)
	assert.Equal(t, "clientes/acme/monitoreos/b", firstUndecodable(docs))
}

func TestClassifyFirestore(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		query bool
	}{
		{"missing index", status.Error(codes.FailedPrecondition, "The query requires an index"), true},
		{"bad filter", status.Error(codes.InvalidArgument, "invalid filter"), true},
		{"unavailable", status.Error(codes.Unavailable, "try again"), false},
		{"permission", status.Error(codes.PermissionDenied, "denied"), false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyFirestore(tt.err)
			assert.Equal(t, tt.query, errors.Is(err, ErrQueryExecution))
			assert.Contains(t, err.Error(), status.Convert(tt.err).Message())
		})
	}
}
