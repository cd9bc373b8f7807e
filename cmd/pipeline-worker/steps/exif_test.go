package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractEXIFToleratesUnparsableBytes(t *testing.T) {
	store := newFakeObjectStore()
	store.objects["uploads/pole.jpg"] = []byte("not a real jpeg")
	store.types["uploads/pole.jpg"] = "image/jpeg"

	registry := testRegistry(t, store)
	sc := testStepContext("uploads/pole.jpg")

	result, err := registry.extractEXIF(context.Background(), sc)
	require.NoError(t, err)

	exifResult := result.(*ExifResult)
	assert.NotEmpty(t, exifResult.Error)
	assert.Empty(t, exifResult.Tags)
	assert.Nil(t, exifResult.GPS)
}

func TestExtractEXIFFailsWhenObjectUnreadable(t *testing.T) {
	registry := testRegistry(t, newFakeObjectStore())
	sc := testStepContext("uploads/gone.jpg")

	_, err := registry.extractEXIF(context.Background(), sc)
	require.Error(t, err)
}
