package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/AnshRaj112/bookjournal-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

// firstFilter returns the filter of the first statement in a write command
// ("updates" or "deletes"), or the "filter" of a find.
func firstFilter(cmd bson.Raw, statements string) bson.Raw {
	if statements == "" {
		return cmd.Lookup("filter").Document()
	}
	return cmd.Lookup(statements).Array().Index(0).Value().Document().Lookup("q").Document()
}

func assertPartitioned(mt *mtest.T, filter bson.Raw, id, userID string) {
	mt.Helper()
	uid, ok := filter.Lookup("userid").StringValueOK()
	assert.True(mt, ok, "filter %s has no userid", filter)
	assert.Equal(mt, userID, uid)
	if id != "" {
		assert.Equal(mt, id, filter.Lookup("_id").StringValue())
	}
}

func TestMongoRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("list decodes, defaults and sorts", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "a"}, {Key: "userid", Value: "u1"}, {Key: "title", Value: "Dune"},
				{Key: "author", Value: "Herbert"}, {Key: "rating", Value: "5"}, {Key: "dateRead", Value: "2023/10/1"},
				{Key: "comments", Value: "spice"}},
			bson.D{{Key: "_id", Value: "b"}, {Key: "userid", Value: "u1"}, {Key: "rating", Value: int32(4)},
				{Key: "dateRead", Value: "2023/9/1"}},
		))

		got, err := NewMongoRepository(mt.Coll).List(ctx, "u1")
		require.NoError(mt, err)
		require.Len(mt, got, 2)

		assert.Equal(mt, "b", got[0].ID)
		assert.Equal(mt, models.DefaultText, got[0].Title)
		assert.Equal(mt, models.DefaultText, got[0].Author)
		assert.Equal(mt, "4", got[0].Rating)
		assert.Nil(mt, got[0].Comments)

		assert.Equal(mt, "a", got[1].ID)
		assert.Equal(mt, "Dune", got[1].Title)
		require.NotNil(mt, got[1].Comments)
		assert.Equal(mt, "spice", *got[1].Comments)
	})

	mt.Run("list of empty partition", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		got, err := NewMongoRepository(mt.Coll).List(ctx, "nobody")
		require.NoError(mt, err)
		assert.NotNil(mt, got)
		assert.Empty(mt, got)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "find", evt.CommandName)
		assertPartitioned(mt, firstFilter(evt.Command, ""), "", "nobody")
	})

	mt.Run("add upserts", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		err := NewMongoRepository(mt.Coll).Add(ctx, models.Entry{ID: "a", UserID: "u1", Title: "Dune"})
		assert.NoError(mt, err)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "update", evt.CommandName)
		assertPartitioned(mt, firstFilter(evt.Command, "updates"), "a", "u1")
		upsert := evt.Command.Lookup("updates").Array().Index(0).Value().Document().Lookup("upsert")
		assert.True(mt, upsert.Boolean())
	})

	mt.Run("add reports an id owned by another partition", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11000, Message: "dup", Name: "DuplicateKey"}))

		err := NewMongoRepository(mt.Coll).Add(ctx, models.Entry{ID: "a", UserID: "u1"})
		require.Error(mt, err)
		assert.True(mt, errors.Is(err, ErrDuplicateID))
		assert.False(mt, errors.Is(err, ErrNotConnected))
	})

	mt.Run("delete without match is a no-op", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		assert.NoError(mt, NewMongoRepository(mt.Coll).Delete(ctx, "missing", "u1"))
	})

	mt.Run("delete removes the matched document", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "a"}, {Key: "userid", Value: "u1"}}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		assert.NoError(mt, NewMongoRepository(mt.Coll).Delete(ctx, "a", "u1"))

		find := mt.GetStartedEvent()
		require.NotNil(mt, find)
		assert.Equal(mt, "find", find.CommandName)
		assertPartitioned(mt, firstFilter(find.Command, ""), "a", "u1")

		del := mt.GetStartedEvent()
		require.NotNil(mt, del)
		assert.Equal(mt, "delete", del.CommandName)
		assertPartitioned(mt, firstFilter(del.Command, "deletes"), "a", "u1")
	})

	mt.Run("is alive when the sentinel query returns a row", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			bson.D{{Key: "count", Value: bson.A{}}}))

		ok, err := NewMongoRepository(mt.Coll).IsAlive(ctx)
		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("not alive when the sentinel query returns no rows", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		ok, err := NewMongoRepository(mt.Coll).IsAlive(ctx)
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("network failure is not connected", func(mt *mtest.T) {
		netErr := mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 6, Message: "host unreachable", Name: "HostUnreachable", Labels: []string{"NetworkError"},
		})
		mt.AddMockResponses(netErr, netErr)

		ok, err := NewMongoRepository(mt.Coll).IsAlive(ctx)
		require.Error(mt, err)
		assert.False(mt, ok)
		assert.True(mt, errors.Is(err, ErrNotConnected))
	})

	mt.Run("health ping fails when the sentinel query is empty", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		err := NewMongoRepository(mt.Coll).HealthPing(ctx)
		assert.True(mt, errors.Is(err, ErrNotConnected))
	})
}
