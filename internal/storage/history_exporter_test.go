package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/AdamBeresnev/bracket-mesh/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{ETag: aws.String(`"etag"`)}, nil
}

func TestHistoryExporter_Export(t *testing.T) {
	putter := &fakePutter{}
	exporter := NewHistoryExporter(putter, "brackets", "history/")

	entry := bracket.HistoryEntry{
		ID:               "t-42",
		Name:             "Friday Night",
		Type:             bracket.DoubleElimination,
		Winner:           "Ann",
		WinnerID:         "p1",
		Standings:        []bracket.Placement{{Place: 1, EntrantID: "p1", Name: "Ann"}},
		ParticipantCount: 8,
		CompletedAt:      1_700_000_000_000,
	}

	key, err := exporter.Export(context.Background(), "room-1", entry)
	require.NoError(t, err)
	assert.Equal(t, "history/room-1/t-42.json", key)

	require.Len(t, putter.inputs, 1)
	in := putter.inputs[0]
	assert.Equal(t, "brackets", aws.ToString(in.Bucket))
	assert.Equal(t, key, aws.ToString(in.Key))
	assert.Equal(t, "application/json", aws.ToString(in.ContentType))

	var got bracket.HistoryEntry
	require.NoError(t, json.Unmarshal(putter.bodies[0], &got))
	assert.Equal(t, entry, got)
}

func TestHistoryExporter_UploadError(t *testing.T) {
	boom := errors.New("bucket gone")
	exporter := NewHistoryExporter(&fakePutter{err: boom}, "brackets", "")

	_, err := exporter.Export(context.Background(), "room-1", bracket.HistoryEntry{ID: "t1"})
	assert.ErrorIs(t, err, boom)
}

func TestNewS3HistoryExporter_RequiresBucket(t *testing.T) {
	_, err := NewS3HistoryExporter(context.Background(), config.S3Config{})
	assert.Error(t, err)

	exporter, err := NewS3HistoryExporter(context.Background(), config.S3Config{
		Endpoint:        "http://localhost:9000",
		Region:          "auto",
		Bucket:          "brackets",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "room/t1.json", exporter.Key("room", bracket.HistoryEntry{ID: "t1"}))
}
