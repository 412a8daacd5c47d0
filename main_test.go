package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListCommandPrintsDerivedPage(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"carts":[
			{"id":1,"total":100,"discountedTotal":90,"totalProducts":2,"products":[]},
			{"id":2,"total":50,"discountedTotal":45,"totalProducts":1,"products":[]},
			{"id":3,"total":200,"discountedTotal":150,"totalProducts":5,"products":[]}
		],"total":3,"skip":0,"limit":30}`)
	}))
	defer upstream.Close()

	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CARTS_URL", upstream.URL)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"list", "--mode", "static", "--sort-order", "asc"})
	require.NoError(t, cmd.Execute())

	var body struct {
		RenderMode    string `json:"render_mode"`
		TotalFiltered int    `json:"total_filtered"`
		TotalPages    int    `json:"total_pages"`
		Carts         []struct {
			ID int `json:"id"`
		} `json:"carts"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	assert.Equal(t, "Static Rendering (ISR 60s)", body.RenderMode)
	assert.Equal(t, 3, body.TotalFiltered)
	assert.Equal(t, 1, body.TotalPages)
	require.Len(t, body.Carts, 3)
	assert.Equal(t, 2, body.Carts[0].ID)
	assert.Equal(t, 3, body.Carts[2].ID)
}

func TestListCommandUnknownMode(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"list", "--mode", "edge"})
	assert.Error(t, cmd.Execute())
}
