package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ListParams — параметры листинга: номер страницы (с 1).
type ListParams struct {
	Page int
}

func parseListParams(q url.Values) ListParams {
	page := 1
	pv := q.Get("_page")
	if pv == "" {
		pv = q.Get("page")
	}
	if pv != "" {
		if n, err := strconv.Atoi(pv); err == nil && n > 0 {
			page = n
		}
	}
	return ListParams{Page: page}
}

// LookupParams — запрос поиска по нескольким типам.
type LookupParams struct {
	Types []string `json:"types"`
	Text  string   `json:"text"`
}

// parseLookupParams: GET ?types=page,tag&text=home (types можно повторять, q — алиас text),
// POST — JSON {types, text}.
func parseLookupParams(c *gin.Context) (LookupParams, error) {
	var lp LookupParams
	if c.Request.Method == "POST" {
		if err := c.ShouldBindJSON(&lp); err != nil {
			return lp, err
		}
	} else {
		q := c.Request.URL.Query()
		for _, v := range q["types"] {
			lp.Types = append(lp.Types, strings.Split(v, ",")...)
		}
		lp.Text = q.Get("text")
		if lp.Text == "" {
			lp.Text = q.Get("q")
		}
	}

	types := lp.Types[:0]
	for _, t := range lp.Types {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	lp.Types = types
	lp.Text = strings.TrimSpace(lp.Text)
	return lp, nil
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	return id, err == nil && id > 0
}
