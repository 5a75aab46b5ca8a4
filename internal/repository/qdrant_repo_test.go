package repository

import (
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpisodePayloadValues(t *testing.T) {
	p := &EpisodePayload{
		IdentityKey:       "辦公設備採購案_1a2b3c4d",
		Title:             "辦公設備採購案",
		Content:           "這是關於「辦公設備採購案」的政府採購案件。",
		SourceID:          "T-001",
		SourceDescription: "政府採購網_招標案_T-001",
	}
	assert.Equal(t, p, payloadFromValues(p.values()))
	assert.Nil(t, payloadFromValues(nil))
}

func TestPointID(t *testing.T) {
	id, err := pointID("6ba7b811-9dad-11d1-80b4-00c04fd430c8")
	require.NoError(t, err)
	assert.Equal(t, "6ba7b811-9dad-11d1-80b4-00c04fd430c8", id.GetUuid())

	_, err = pointID("not-a-uuid")
	assert.Error(t, err)
}

func TestSourceFilter(t *testing.T) {
	assert.Nil(t, sourceFilter(""))

	f := sourceFilter("T-001")
	require.Len(t, f.GetMust(), 1)
	field := f.GetMust()[0].GetField()
	assert.Equal(t, payloadSourceID, field.GetKey())
	assert.Equal(t, "T-001", field.GetMatch().GetKeyword())
}

func TestVectorSize(t *testing.T) {
	_, ok := vectorSize(nil)
	assert.False(t, ok)

	single := &pb.CollectionInfo{Config: &pb.CollectionConfig{Params: &pb.CollectionParams{
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{Size: 768}}},
	}}}
	size, ok := vectorSize(single)
	assert.True(t, ok)
	assert.EqualValues(t, 768, size)

	named := &pb.CollectionInfo{Config: &pb.CollectionConfig{Params: &pb.CollectionParams{
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_ParamsMap{ParamsMap: &pb.VectorParamsMap{
			Map: map[string]*pb.VectorParams{"dense": {Size: 1024}},
		}}},
	}}}
	size, ok = vectorSize(named)
	assert.True(t, ok)
	assert.EqualValues(t, 1024, size)
}

func TestDialOptions(t *testing.T) {
	assert.Len(t, dialOptions(&QdrantConnectionConfig{}), 1)
	assert.Len(t, dialOptions(&QdrantConnectionConfig{UseTLS: true}), 1)
	assert.Len(t, dialOptions(&QdrantConnectionConfig{APIKey: "k"}), 2)
}
