package sink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoSink_Write(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("写入成功", func(mt *mtest.T) {
		s := &MongoSink{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := s.Write(context.Background(), "run-1", sampleRecords())
		assert.NoError(mt, err)
	})

	mt.Run("重复键", func(mt *mtest.T) {
		s := &MongoSink{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := s.Write(context.Background(), "run-1", sampleRecords())
		require.Error(mt, err)

		var bwe mongo.BulkWriteException
		assert.ErrorAs(mt, err, &bwe)
	})

	mt.Run("无记录不发请求", func(mt *mtest.T) {
		s := &MongoSink{coll: mt.Coll}
		assert.NoError(mt, s.Write(context.Background(), "run-1", nil))
		assert.NoError(mt, s.Close())
	})
}

func TestToDocument(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	doc, err := toDocument(sampleRecords()[0], "run-1", at)
	require.NoError(t, err)

	fields := make(map[string]interface{}, len(doc))
	for _, e := range doc {
		fields[e.Key] = e.Value
	}

	assert.Equal(t, "run_id", doc[0].Key)
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "fruits-vegetables", fields["category"])
	assert.Equal(t, at, fields["harvested_at"])
	assert.Equal(t, int32(10), fields["Id"])
	assert.Equal(t, `"8901234567890"`, fields["EAN code"])
	assert.Equal(t, 500.0, fields["w_mag"])
	assert.Equal(t, "NAN", fields["Children"])
	assert.IsType(t, bson.A{}, fields["Image"])
}
