package api

import (
	"net/http"
	"strconv"

	"contentdesk/internal/cms"

	"github.com/gin-gonic/gin"
)

// GET {prefix}/:type?page=N
func IndexHandler(ctrl *cms.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		lp := parseListParams(c.Request.URL.Query())
		page, err := ctrl.Index(c.Request.Context(), c.Param("type"), lp.Page)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("X-Total-Count", strconv.Itoa(page.Total))
		c.JSON(http.StatusOK, page)
	}
}

// GET {prefix}/:type/create
func CreateFormHandler(ctrl *cms.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := ctrl.Create(c.Request.Context(), c.Param("type"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, form)
	}
}

// POST {prefix}/:type/create
func StoreHandler(ctrl *cms.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		var obj map[string]any
		if err := c.ShouldBindJSON(&obj); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		res, err := ctrl.Store(c.Request.Context(), c.Param("type"), obj)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}

// GET {prefix}/:type/:id
func EditHandler(ctrl *cms.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		form, err := ctrl.Edit(c.Request.Context(), c.Param("type"), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, form)
	}
}

// POST {prefix}/:type/:id
func UpdateHandler(ctrl *cms.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		var obj map[string]any
		if err := c.ShouldBindJSON(&obj); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		res, err := ctrl.Update(c.Request.Context(), c.Param("type"), id, obj)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// GET|POST /api/cms/lookup
//
//	GET  ?types=page,tag&text=home
//	POST {"types": ["page", "tag"], "text": "home"}
func LookupHandler(p *cms.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		lp, err := parseLookupParams(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		if len(lp.Types) == 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"errors": []cms.FieldError{{Code: cms.CodeRequired, Field: "types", Message: "Field 'types' is required"}},
			})
			return
		}
		out, err := p.Lookup(c.Request.Context(), lp.Types, lp.Text)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}
