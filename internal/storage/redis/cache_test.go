package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school/backend/internal/domain"
)

func TestAvatarCodec(t *testing.T) {
	original := &domain.Avatar{
		ID:        3,
		FilePath:  "avatars/avatar_7_x.jpg",
		MediaType: "image/jpeg",
		FileSize:  4,
		Data:      []byte{0xFF, 0xD8, 0x00, 0x01},
		StudentID: 7,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	data, err := encodeAvatar(original)
	require.NoError(t, err)

	decoded, err := decodeAvatar(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	_, err = decodeAvatar([]byte("not json"))
	assert.Error(t, err)
}

func TestAvatarKey(t *testing.T) {
	assert.Equal(t, "avatar:student:42", avatarKey(42))
}
