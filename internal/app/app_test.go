package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"blocknotes/internal/config"
	"blocknotes/internal/domain"
	"blocknotes/internal/storage"
	"blocknotes/internal/upload"
)

const (
	aliceToken = "alice-token-0123456789"
	bobToken   = "bob-token-0123456789ab"
)

type testClient struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestApp(t *testing.T) *testClient {
	t.Helper()
	db, err := storage.New(":memory:")
	require.NoError(t, err)
	stores := &Stores{
		Pages:  storage.NewPageStore(db),
		Blocks: storage.NewBlockStore(db),
		Driver: db.Driver(),
		ping:   db.Ping,
		close:  func(context.Context) error { return db.Close() },
	}
	uploads, err := upload.NewStore(t.TempDir(), "/files/")
	require.NoError(t, err)

	cfg := &config.Config{Auth: config.Auth{Tokens: []config.Token{
		{Owner: "alice", Hash: hash(t, aliceToken)},
		{Owner: "bob", Hash: hash(t, bobToken)},
	}}}
	a := newApp(cfg, zerolog.Nop(), stores, uploads)
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		srv.Close()
		stores.Close(context.Background())
	})
	return &testClient{t: t, srv: srv}
}

func hash(t *testing.T, token string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

// do sends body (nil, a string or a value to encode) and returns the
// status and raw response body.
func (c *testClient) do(method, path, token string, body any) (int, []byte) {
	c.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(c.t, err)
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, rd)
	require.NoError(c.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, data
}

func (c *testClient) createPage(token, title string) domain.Page {
	c.t.Helper()
	status, body := c.do(http.MethodPost, "/api/pages", token, map[string]any{"title": title})
	require.Equal(c.t, http.StatusCreated, status, string(body))
	var p domain.Page
	require.NoError(c.t, json.Unmarshal(body, &p))
	return p
}

func paragraphs(n int) map[string]any {
	blocks := make([]map[string]any, n)
	for i := range blocks {
		blocks[i] = map[string]any{
			"type":    "paragraph",
			"content": map[string]any{"text": fmt.Sprintf("line %d", i)},
		}
	}
	return map[string]any{"blocks": blocks}
}

func TestAPI_RequiresToken(t *testing.T) {
	c := newTestApp(t)

	status, body := c.do(http.MethodGet, "/api/pages", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, string(body), "missing bearer token")

	status, _ = c.do(http.MethodGet, "/api/pages", "not-a-real-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAPI_Health(t *testing.T) {
	c := newTestApp(t)
	status, body := c.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestAPI_SaveAndPaginate(t *testing.T) {
	c := newTestApp(t)
	page := c.createPage(aliceToken, "  Notes ")
	assert.Equal(t, "Notes", page.Title)

	status, body := c.do(http.MethodPut, "/api/pages/"+page.ID+"/blocks", aliceToken, paragraphs(25))
	require.Equal(t, http.StatusOK, status, string(body))
	var saved struct {
		Blocks []domain.Block `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(body, &saved))
	require.Len(t, saved.Blocks, 25)
	assert.True(t, domain.ValidID(saved.Blocks[0].ID))

	status, body = c.do(http.MethodGet, "/api/pages/"+page.ID+"/blocks", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	var first domain.BlockPage
	require.NoError(t, json.Unmarshal(body, &first))
	assert.Len(t, first.Blocks, 20)
	assert.True(t, first.HasMore)
	require.NotNil(t, first.NextCursor)
	assert.Equal(t, 19, *first.NextCursor)

	status, body = c.do(http.MethodGet, fmt.Sprintf("/api/pages/%s/blocks?cursor=%d", page.ID, *first.NextCursor), aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	var second domain.BlockPage
	require.NoError(t, json.Unmarshal(body, &second))
	require.Len(t, second.Blocks, 5)
	assert.False(t, second.HasMore)
	assert.Equal(t, "line 20", second.Blocks[0].Content.(*domain.TextContent).Text)

	status, body = c.do(http.MethodGet, "/api/pages/"+page.ID+"/blocks?limit=all", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	var all domain.BlockPage
	require.NoError(t, json.Unmarshal(body, &all))
	assert.Len(t, all.Blocks, 25)
	assert.False(t, all.HasMore)

	status, _ = c.do(http.MethodGet, "/api/pages/"+page.ID+"/blocks?limit=-3", aliceToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, body = c.do(http.MethodGet, "/api/pages/"+page.ID+"?limit=2", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	var state domain.PageState
	require.NoError(t, json.Unmarshal(body, &state))
	assert.Equal(t, page.ID, state.Page.ID)
	assert.Len(t, state.Blocks.Blocks, 2)
	assert.True(t, state.Blocks.HasMore)
}

func TestAPI_ErrorMapping(t *testing.T) {
	c := newTestApp(t)
	page := c.createPage(aliceToken, "Private")

	status, body := c.do(http.MethodGet, "/api/pages/"+page.ID, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	var e errorBody
	require.NoError(t, json.Unmarshal(body, &e))
	assert.NotEmpty(t, e.Error)

	status, _ = c.do(http.MethodGet, "/api/pages/not-an-id", aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = c.do(http.MethodPut, "/api/pages/"+page.ID+"/blocks", aliceToken, `{"blocks": [`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = c.do(http.MethodPost, "/api/pages", aliceToken, map[string]any{"title": strings.Repeat("x", 201)})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = c.do(http.MethodGet, "/public/pages/"+page.ID, "", nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestAPI_BlockEditing(t *testing.T) {
	c := newTestApp(t)
	page := c.createPage(aliceToken, "Edits")

	status, body := c.do(http.MethodPost, "/api/pages/"+page.ID+"/blocks", aliceToken, map[string]any{
		"type":    "paragraph",
		"content": map[string]any{"text": "hello world"},
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	var b domain.Block
	require.NoError(t, json.Unmarshal(body, &b))

	status, body = c.do(http.MethodPost, "/api/blocks/"+b.ID+"/format", aliceToken, map[string]any{
		"action": "apply", "mark": "bold", "start": 6, "end": 11,
	})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = c.do(http.MethodPatch, "/api/blocks/"+b.ID, aliceToken, map[string]any{
		"text":            "hello big world",
		"backgroundColor": "yellow",
	})
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &b))
	tc := b.Content.(*domain.TextContent)
	assert.Equal(t, "hello big world", tc.Text)
	assert.Equal(t, []domain.Mark{{Type: domain.MarkBold, Start: 10, End: 15}}, tc.Marks)
	require.NotNil(t, b.BackgroundColor)
	assert.Equal(t, domain.Color("yellow"), *b.BackgroundColor)

	status, body = c.do(http.MethodPatch, "/api/blocks/"+b.ID, aliceToken, `{"backgroundColor": null}`)
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &b))
	assert.Nil(t, b.BackgroundColor)

	status, _ = c.do(http.MethodPatch, "/api/blocks/"+b.ID, bobToken, map[string]any{"text": "mine"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = c.do(http.MethodDelete, "/api/blocks/"+b.ID, aliceToken, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = c.do(http.MethodGet, "/api/blocks/"+b.ID, aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPI_TreeAndPublish(t *testing.T) {
	c := newTestApp(t)
	root := c.createPage(aliceToken, "Guide")

	status, body := c.do(http.MethodPost, "/api/pages", aliceToken, map[string]any{"title": "Chapter", "parentPageId": root.ID})
	require.Equal(t, http.StatusCreated, status, string(body))
	var child domain.Page
	require.NoError(t, json.Unmarshal(body, &child))

	status, body = c.do(http.MethodGet, "/api/pages/"+root.ID+"/children", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	var children []domain.Page
	require.NoError(t, json.Unmarshal(body, &children))
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)

	status, body = c.do(http.MethodPut, "/api/pages/"+root.ID+"/visibility", aliceToken, map[string]any{"isPublic": true})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"isPublic":true}`, string(body))

	// the private child is hidden from the public view
	status, body = c.do(http.MethodGet, "/public/pages/"+root.ID+"/blocks", "", nil)
	require.Equal(t, http.StatusOK, status)
	var pub domain.BlockPage
	require.NoError(t, json.Unmarshal(body, &pub))
	assert.Empty(t, pub.Blocks)

	status, body = c.do(http.MethodGet, "/public/pages/"+root.ID+"/export", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "# Guide")
	assert.NotContains(t, string(body), "Chapter")

	status, body = c.do(http.MethodGet, "/public/pages/"+root.ID+"/export?format=html", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "<h1>Guide</h1>")

	status, _ = c.do(http.MethodGet, "/public/pages/"+root.ID+"/export?format=pdf", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, body = c.do(http.MethodDelete, "/api/pages/"+root.ID, aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"deletedCount":2,"parentPageId":null}`, string(body))

	status, _ = c.do(http.MethodGet, "/api/pages/"+child.ID, aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

// upload posts a small png as token's owner and returns the stored object
// and the encoded bytes.
func (c *testClient) upload(token string) (upload.Object, []byte) {
	c.t.Helper()
	var img bytes.Buffer
	require.NoError(c.t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 3, 2))))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "pic.png")
	require.NoError(c.t, err)
	_, err = fw.Write(img.Bytes())
	require.NoError(c.t, err)
	require.NoError(c.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, c.srv.URL+"/api/uploads", &body)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	require.Equal(c.t, http.StatusCreated, resp.StatusCode)

	var obj upload.Object
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&obj))
	return obj, img.Bytes()
}

func TestAPI_Upload(t *testing.T) {
	c := newTestApp(t)

	obj, img := c.upload(aliceToken)
	assert.Equal(t, 3, obj.Width)
	assert.Equal(t, 2, obj.Height)
	assert.True(t, strings.HasPrefix(obj.URL, "/files/"+upload.OwnerKey("alice")+"/"))

	status, served := c.do(http.MethodGet, obj.URL, "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, img, served)
}

func TestAPI_ImportedImageSurvivesCopyDelete(t *testing.T) {
	c := newTestApp(t)
	obj, img := c.upload(aliceToken)

	src := c.createPage(aliceToken, "Gallery")
	status, body := c.do(http.MethodPost, "/api/pages/"+src.ID+"/blocks", aliceToken, map[string]any{
		"type":    "image",
		"content": map[string]any{"url": obj.URL, "width": obj.Width, "height": obj.Height},
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	var original domain.Block
	require.NoError(t, json.Unmarshal(body, &original))
	status, _ = c.do(http.MethodPut, "/api/pages/"+src.ID+"/visibility", aliceToken, map[string]any{"isPublic": true})
	require.Equal(t, http.StatusOK, status)

	dst := c.createPage(bobToken, "Copies")
	status, body = c.do(http.MethodPost, "/api/pages/"+dst.ID+"/import", bobToken, map[string]any{"sourcePageId": src.ID})
	require.Equal(t, http.StatusOK, status, string(body))
	var res struct {
		Blocks []domain.Block `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(body, &res))
	require.Len(t, res.Blocks, 1)

	status, _ = c.do(http.MethodDelete, "/api/blocks/"+res.Blocks[0].ID, bobToken, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, served := c.do(http.MethodGet, obj.URL, "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, img, served)

	// the last reference takes the file with it
	status, _ = c.do(http.MethodDelete, "/api/blocks/"+original.ID, aliceToken, nil)
	require.Equal(t, http.StatusNoContent, status)
	status, _ = c.do(http.MethodGet, obj.URL, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
