package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkErrorSatisfiesErrorInterface(t *testing.T) {
	bulk := NewBulkError("batch rejected", []BulkErrorDetail{
		{ID: "item-1", Code: ErrNotFound.Code, Message: "not found"},
	})

	var err error = bulk
	assert.Equal(t, "batch rejected", err.Error())

	var asBulk *BulkError
	require.ErrorAs(t, err, &asBulk)
	require.Len(t, asBulk.Details, 1)
	assert.Equal(t, "item-1", asBulk.Details[0].ID)

	var asTyped *Error
	require.ErrorAs(t, err, &asTyped)
	assert.Equal(t, "BULK_VALIDATION_ERROR", asTyped.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, asTyped.Status)
}

func TestBulkErrorSurvivesWrapping(t *testing.T) {
	bulk := NewBulkError("batch rejected", nil)
	wrapped := fmt.Errorf("handler: %w", bulk)

	var asBulk *BulkError
	require.ErrorAs(t, wrapped, &asBulk)
	assert.Same(t, bulk, asBulk)
}

func TestFromErrorNormalises(t *testing.T) {
	bulk := NewBulkError("batch rejected", nil)
	base := FromError(bulk)
	require.NotNil(t, base)
	assert.Equal(t, "BULK_VALIDATION_ERROR", base.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, base.Status)

	typed := FromError(Clone(ErrInvalidTransition, "cannot advance"))
	assert.Equal(t, ErrInvalidTransition.Code, typed.Code)
	assert.Equal(t, "cannot advance", typed.Message)

	plain := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.Status)

	assert.Nil(t, FromError(nil))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("duplicate key")
	wrapped := Wrap(cause, ErrConflict.Code, ErrConflict.Status, "already exists")
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "already exists")
}
