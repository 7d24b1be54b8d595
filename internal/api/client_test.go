package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatbird/chatbird-bridge/internal/domain"
)

func TestLogin(t *testing.T) {
	t.Parallel()

	t.Run("fills the session in place", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/auth/login", r.URL.Path)

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "a@b.com", body["email"])

			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true,
				"token":   "jwt-token",
				"user": map[string]string{
					"_id": "u1", "name": "Alice", "email": "a@b.com", "preferredLanguage": "es",
				},
			})
		}))
		defer server.Close()

		sess := &domain.Session{}
		c := NewClient(server.URL, sess, zerolog.Nop())

		require.NoError(t, c.Login(context.Background(), "a@b.com", "secret"))
		assert.Equal(t, "u1", sess.UserID)
		assert.Equal(t, "Alice", sess.Name)
		assert.Equal(t, "jwt-token", sess.Token)
		assert.Equal(t, "es", sess.PreferredLanguage)
	})

	t.Run("surfaces the server message on failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": false,
				"message": "invalid credentials",
			})
		}))
		defer server.Close()

		c := NewClient(server.URL, &domain.Session{}, zerolog.Nop())
		err := c.Login(context.Background(), "a@b.com", "wrong")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid credentials")
	})
}

func TestAuthorizationHeader(t *testing.T) {
	t.Parallel()

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "users": []interface{}{}})
	}))
	defer server.Close()

	c := NewClient(server.URL, &domain.Session{Token: "tok-123"}, zerolog.Nop())
	_, err := c.AllUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestConnectedUsers(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chats/getConnectedUser", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u1", body["userId"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"connectedUsers": []map[string]interface{}{
				{
					"conversationId": "c1",
					"user":           map[string]string{"_id": "u2", "name": "Bob"},
					"lastMessage":    "see you",
				},
			},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, &domain.Session{UserID: "u1"}, zerolog.Nop())
	conversations, err := c.ConnectedUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, "c1", conversations[0].ID)
	assert.Equal(t, "u2", conversations[0].RecipientID)
	assert.Equal(t, "Bob", conversations[0].RecipientName)
	assert.Equal(t, "see you", conversations[0].LastMessageText)
}

func TestConversationDetails(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chats/conversation/c1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"participants": []map[string]string{
				{"_id": "u1", "name": "Alice"},
				{"_id": "u2", "name": "Bob", "preferredLanguage": "fr"},
			},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, &domain.Session{UserID: "u1"}, zerolog.Nop())
	participants, err := c.ConversationDetails(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, "c1", participants[0].ConversationID)
	assert.Equal(t, "fr", participants[1].PreferredLanguage)
}

func TestUpdateLanguage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/chats/update-lang", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ja", body["preferredLanguage"])
		assert.Equal(t, "c1", body["conversationId"])

		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))
	defer server.Close()

	sess := &domain.Session{PreferredLanguage: "en"}
	c := NewClient(server.URL, sess, zerolog.Nop())
	require.NoError(t, c.UpdateLanguage(context.Background(), "c1", "ja"))
	assert.Equal(t, "ja", sess.PreferredLanguage)
}

func TestUploadMedia(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/conv-media/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "c1", r.FormValue("conversationId"))
		assert.Equal(t, "image", r.FormValue("messageType"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "photo.jpg", header.Filename)

		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "fake image bytes", string(content))

		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))
	defer server.Close()

	c := NewClient(server.URL, &domain.Session{Token: "tok"}, zerolog.Nop())
	err := c.UploadMedia(context.Background(), "c1", domain.MessageTypeImage, "photo.jpg",
		strings.NewReader("fake image bytes"))
	require.NoError(t, err)
}

func TestServerErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, &domain.Session{}, zerolog.Nop())
	_, err := c.AllUsers(context.Background())
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}
