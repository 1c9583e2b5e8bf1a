package mongostore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseFromURI(t *testing.T) {
	assert.Equal(t, "notes", databaseFromURI("mongodb://localhost:27017/notes"))
	assert.Equal(t, "notes", databaseFromURI("mongodb+srv://u:p@cluster.example.net/notes?retryWrites=true"))
	assert.Equal(t, "blocknotes", databaseFromURI("mongodb://localhost:27017"))
	assert.Equal(t, "blocknotes", databaseFromURI("mongodb://localhost:27017/"))
}
