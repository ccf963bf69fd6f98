package library_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-history-go/library"
)

func Test_GetConsistencyLevel_DefaultsToStrong(t *testing.T) {
	assert.Equal(t, library.StrongConsistency, library.GetConsistencyLevel(context.Background()))
}

func Test_GetConsistencyLevel_ReturnsLevelFromContext(t *testing.T) {
	ctx := library.WithEventualConsistency(context.Background())
	assert.Equal(t, library.EventualConsistency, library.GetConsistencyLevel(ctx))
	assert.Equal(t, "eventual", library.GetConsistencyLevel(ctx).String())

	ctx = library.WithStrongConsistency(ctx)
	assert.Equal(t, library.StrongConsistency, library.GetConsistencyLevel(ctx))
	assert.Equal(t, "strong", library.GetConsistencyLevel(ctx).String())
}
