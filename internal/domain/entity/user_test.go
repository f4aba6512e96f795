package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// BeforeSave does not touch tx, so a nil handle is enough.
var noTx *gorm.DB

func TestUser_BeforeSave_HashesPassword(t *testing.T) {
	plainPassword := "Secret@123"
	user := &User{Username: "student0001", Email: "a@b.com", Password: plainPassword}

	err := user.BeforeSave(noTx)

	require.NoError(t, err)
	assert.NotEqual(t, plainPassword, user.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(plainPassword)))
}

func TestUser_BeforeSave_SkipsAlreadyHashedPassword(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("alreadyHashed"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &User{Password: string(hashed)}

	require.NoError(t, user.BeforeSave(noTx))

	assert.Equal(t, string(hashed), user.Password, "hash must not be hashed twice")
}

func TestUser_BeforeSave_DefaultsRole(t *testing.T) {
	user := &User{}

	require.NoError(t, user.BeforeSave(noTx))

	assert.Equal(t, RoleStudent, user.Role)
	assert.Equal(t, "", user.Password)
}

func TestUser_CheckPassword(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct#Pass1"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &User{Password: string(hashed)}

	assert.True(t, user.CheckPassword("correct#Pass1"))
	assert.False(t, user.CheckPassword("wrong#Pass1"))
	assert.False(t, user.CheckPassword(""))
}

func TestUser_HasRefreshToken(t *testing.T) {
	token := "header.payload.sig"
	user := &User{}

	assert.False(t, user.HasRefreshToken(token), "no stored token")

	user.RefreshToken = &token
	assert.True(t, user.HasRefreshToken(token))
	assert.False(t, user.HasRefreshToken("header.payload.other"))
	assert.False(t, user.HasRefreshToken(""))
}

func TestValidHostelAndDegree(t *testing.T) {
	assert.True(t, ValidHostel("GARGI"))
	assert.False(t, ValidHostel("gargi"))
	assert.True(t, ValidDegree("PHARMA"))
	assert.False(t, ValidDegree("MBA"))
}

func TestUser_TableName(t *testing.T) {
	assert.Equal(t, "users", User{}.TableName())
}
