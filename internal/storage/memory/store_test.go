package memory

import (
	"context"
	"math"
	"testing"

	"school/backend/internal/domain"
	"school/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_StudentOperations(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	faculty := &domain.Faculty{Name: "Gryffindor", Color: "Red"}
	require.NoError(t, store.CreateFaculty(ctx, faculty))
	assert.Equal(t, uint64(1), faculty.ID)

	student := &domain.Student{Name: "Harry", Age: 17, FacultyID: &faculty.ID}
	require.NoError(t, store.CreateStudent(ctx, student))
	assert.Equal(t, uint64(1), student.ID)
	assert.False(t, student.CreatedAt.IsZero())

	got, err := store.GetStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, "Harry", got.Name)

	// 修改返回值不影响存储
	got.Name = "changed"
	again, err := store.GetStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, "Harry", again.Name)

	student.Age = 18
	require.NoError(t, store.UpdateStudent(ctx, student))
	got, err = store.GetStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 18, got.Age)

	byAge, err := store.ListStudentsByAge(ctx, 18, 20)
	require.NoError(t, err)
	assert.Len(t, byAge, 1)

	byFaculty, err := store.ListStudentsByFaculty(ctx, faculty.ID)
	require.NoError(t, err)
	assert.Len(t, byFaculty, 1)

	_, err = store.ListStudentsByFaculty(ctx, 99)
	assert.ErrorIs(t, err, storage.ErrFacultyNotFound)

	missing := uint64(42)
	err = store.CreateStudent(ctx, &domain.Student{Name: "Ghost", Age: 12, FacultyID: &missing})
	assert.ErrorIs(t, err, storage.ErrFacultyNotFound)

	_, err = store.GetStudent(ctx, 99)
	assert.ErrorIs(t, err, storage.ErrStudentNotFound)
	assert.ErrorIs(t, store.UpdateStudent(ctx, &domain.Student{ID: 99}), storage.ErrStudentNotFound)
}

func TestMemoryStore_FacultySearch(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.CreateFaculty(ctx, &domain.Faculty{Name: "Gryffindor", Color: "Red"}))
	require.NoError(t, store.CreateFaculty(ctx, &domain.Faculty{Name: "Slytherin", Color: "Green"}))

	found, err := store.SearchFaculties(ctx, "green")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Slytherin", found[0].Name)

	found, err = store.SearchFaculties(ctx, "GRYF")
	require.NoError(t, err)
	require.Len(t, found, 1)

	all, err := store.ListFaculties(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = store.GetFaculty(ctx, 99)
	assert.ErrorIs(t, err, storage.ErrFacultyNotFound)
}

func TestMemoryStore_AvatarOperations(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	student := &domain.Student{Name: "Hermione", Age: 17}
	require.NoError(t, store.CreateStudent(ctx, student))

	t.Run("首次写入", func(t *testing.T) {
		avatar := &domain.Avatar{
			StudentID: student.ID,
			FilePath:  "avatars/a.png",
			MediaType: "image/png",
			FileSize:  3,
			Data:      []byte{1, 2, 3},
		}
		previous, err := store.ReplaceAvatar(ctx, avatar)
		require.NoError(t, err)
		assert.Nil(t, previous)
		assert.NotZero(t, avatar.ID)

		got, err := store.GetAvatarByStudentID(ctx, student.ID)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, got.Data)

		// 返回的是副本
		got.Data[0] = 9
		again, err := store.GetAvatarByStudentID(ctx, student.ID)
		require.NoError(t, err)
		assert.Equal(t, byte(1), again.Data[0])
	})

	t.Run("替换旧头像", func(t *testing.T) {
		avatar := &domain.Avatar{
			StudentID: student.ID,
			FilePath:  "avatars/b.gif",
			MediaType: "image/gif",
			FileSize:  1,
			Data:      []byte{7},
		}
		previous, err := store.ReplaceAvatar(ctx, avatar)
		require.NoError(t, err)
		require.NotNil(t, previous)
		assert.Equal(t, "avatars/a.png", previous.FilePath)

		got, err := store.GetAvatarByStudentID(ctx, student.ID)
		require.NoError(t, err)
		assert.Equal(t, "avatars/b.gif", got.FilePath)

		_, total, err := store.ListAvatars(ctx, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("学生不存在", func(t *testing.T) {
		_, err := store.ReplaceAvatar(ctx, &domain.Avatar{StudentID: 99})
		assert.ErrorIs(t, err, storage.ErrStudentNotFound)

		_, err = store.GetAvatarByStudentID(ctx, 99)
		assert.ErrorIs(t, err, storage.ErrAvatarNotFound)
	})

	t.Run("删除学生级联删除头像", func(t *testing.T) {
		removed, err := store.DeleteStudent(ctx, student.ID)
		require.NoError(t, err)
		require.NotNil(t, removed)
		assert.Equal(t, "avatars/b.gif", removed.FilePath)

		_, err = store.GetAvatarByStudentID(ctx, student.ID)
		assert.ErrorIs(t, err, storage.ErrAvatarNotFound)

		_, err = store.DeleteStudent(ctx, student.ID)
		assert.ErrorIs(t, err, storage.ErrStudentNotFound)
	})
}

func TestMemoryStore_ListAvatarsPaging(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	for i := 0; i < 12; i++ {
		student := &domain.Student{Name: "s", Age: 12}
		require.NoError(t, store.CreateStudent(ctx, student))
		_, err := store.ReplaceAvatar(ctx, &domain.Avatar{
			StudentID: student.ID,
			FilePath:  "avatars/x.png",
			MediaType: "image/png",
			FileSize:  1,
			Data:      []byte{1},
		})
		require.NoError(t, err)
	}

	page0, total, err := store.ListAvatars(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, page0, 10)
	for i := 1; i < len(page0); i++ {
		assert.Less(t, page0[i-1].ID, page0[i].ID)
	}

	page1, _, err := store.ListAvatars(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, page1, 2)

	page5, total, err := store.ListAvatars(ctx, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, page5)
	assert.NotNil(t, page5)
	assert.Equal(t, int64(12), total)

	huge, total, err := store.ListAvatars(ctx, math.MaxInt/10+1, 10)
	require.NoError(t, err)
	assert.Empty(t, huge)
	assert.Equal(t, int64(12), total)
}
