package identity_test

import (
	"errors"
	"os"
	"testing"

	"github.com/benmeehan/geo-reporter/internal/mocks"
	"github.com/benmeehan/geo-reporter/pkg/identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLoadDeviceInfo_Existing(t *testing.T) {
	fileOps := new(mocks.MockFileOperations)
	fileOps.On("ReadJsonFile", "device.json", mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*identity.Identity).ID = "device-123"
	}).Return(nil)

	info := identity.NewDeviceInfo("device.json", fileOps)
	require.NoError(t, info.LoadDeviceInfo())

	assert.Equal(t, "device-123", info.GetDeviceID())
	fileOps.AssertNotCalled(t, "WriteJsonFile", mock.Anything, mock.Anything)
}

func TestLoadDeviceInfo_GeneratesMissingID(t *testing.T) {
	fileOps := new(mocks.MockFileOperations)
	fileOps.On("ReadJsonFile", "device.json", mock.Anything).Return(os.ErrNotExist)
	fileOps.On("WriteJsonFile", "device.json", mock.Anything).Return(nil).Once()

	info := identity.NewDeviceInfo("device.json", fileOps)
	require.NoError(t, info.LoadDeviceInfo())

	_, err := uuid.Parse(info.GetDeviceID())
	assert.NoError(t, err)
	fileOps.AssertExpectations(t)
}

func TestLoadDeviceInfo_ReadError(t *testing.T) {
	fileOps := new(mocks.MockFileOperations)
	readErr := errors.New("permission denied")
	fileOps.On("ReadJsonFile", "device.json", mock.Anything).Return(readErr)

	info := identity.NewDeviceInfo("device.json", fileOps)
	assert.ErrorIs(t, info.LoadDeviceInfo(), readErr)
	assert.Empty(t, info.GetDeviceID())
}
