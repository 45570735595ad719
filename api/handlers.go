package api

import (
	"errors"
	"math"
	"net/http"

	"macrostudio/config"
	"macrostudio/generator"
	"macrostudio/models"
	"macrostudio/service"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

type createMacroRequest struct {
	Name string `json:"name"`
}

// updateMacroRequest fields are optional; only non-nil ones are applied.
type updateMacroRequest struct {
	Name       *string          `json:"name"`
	TriggerKey *string          `json:"triggerKey"`
	LoopMode   *models.LoopMode `json:"loopMode"`
}

type editTargetRequest struct {
	Target models.EditTarget `json:"target"`
}

type generateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

type macroListResponse struct {
	Macros     []*models.Macro   `json:"macros"`
	ActiveID   string            `json:"activeId"`
	EditTarget models.EditTarget `json:"editTarget"`
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidImport):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNoActiveMacro):
		return http.StatusConflict
	case errors.Is(err, generator.ErrMissingCredential):
		return http.StatusPreconditionFailed
	case errors.Is(err, generator.ErrMalformedResponse):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), models.ErrorFrom(err))
}

func ListMacros(c *gin.Context, store *service.MacroStore) {
	c.JSON(http.StatusOK, models.SuccessResponse(macroListResponse{
		Macros:     store.List(),
		ActiveID:   store.ActiveID(),
		EditTarget: store.EditTarget(),
	}))
}

func CreateMacro(c *gin.Context, store *service.MacroStore) {
	var req createMacroRequest
	// An empty body creates a macro with the default name.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorFrom(err))
			return
		}
	}
	m, err := store.Create(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.SuccessResponse(m))
}

func GetMacro(c *gin.Context, store *service.MacroStore) {
	m, err := store.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(m))
}

func UpdateMacro(c *gin.Context, store *service.MacroStore) {
	var req updateMacroRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorFrom(err))
		return
	}

	m, err := store.UpdateMacro(c.Request.Context(), c.Param("id"), service.MacroPatch{
		Name:       req.Name,
		TriggerKey: req.TriggerKey,
		LoopMode:   req.LoopMode,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(m))
}

func DeleteMacro(c *gin.Context, store *service.MacroStore) {
	if err := store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse("macro deleted"))
}

func SelectMacro(c *gin.Context, store *service.MacroStore) {
	if err := store.Select(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	GetMacro(c, store)
}

func SetEditTarget(c *gin.Context, store *service.MacroStore) {
	var req editTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorFrom(err))
		return
	}
	if err := store.SetEditTarget(req.Target); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{"editTarget": req.Target}))
}

// InsertAction accepts {"index": n, "action": {...}}. Without an index the
// action is appended. The action is read leniently, as on import.
func InsertAction(c *gin.Context, store *service.MacroStore) {
	body, err := c.GetRawData()
	if err != nil || !gjson.ValidBytes(body) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("request body must be JSON"))
		return
	}
	req := gjson.ParseBytes(body)
	raw := req.Get("action")
	if !raw.IsObject() {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("action object is required"))
		return
	}

	index := math.MaxInt // clamped to the end by the store
	if v := req.Get("index"); v.Exists() {
		index = int(v.Int())
	}

	a := service.DecodeAction(raw)
	inserted, err := store.InsertAction(c.Request.Context(), index, a)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.SuccessResponse(inserted))
}

func UpdateAction(c *gin.Context, store *service.MacroStore) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorFrom(err))
		return
	}
	updated, err := store.UpdateAction(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(updated))
}

func RemoveAction(c *gin.Context, store *service.MacroStore) {
	if err := store.RemoveAction(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse("action removed"))
}

func ExportMacros(c *gin.Context, store *service.MacroStore) {
	data, err := store.Export()
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+config.ExportFileName+`"`)
	c.Data(http.StatusOK, "application/json", data)
}

// ImportMacros takes the pasted document as the raw request body.
func ImportMacros(c *gin.Context, store *service.MacroStore) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorFrom(err))
		return
	}
	if err := store.Import(c.Request.Context(), body); err != nil {
		respondError(c, err)
		return
	}
	ListMacros(c, store)
}

func NormalizeActions(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(service.NormalizeJSON(body)))
}

func GenerateActions(c *gin.Context, gen *service.GenerationService) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorFrom(err))
		return
	}

	main, release, err := gen.Generate(c.Request.Context(), req.Prompt)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError && !errors.Is(err, service.ErrPersist) {
			status = http.StatusBadGateway // upstream transport failure
		}
		c.JSON(status, models.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"mainSequence":    main,
		"releaseSequence": release,
	}))
}

func GetPlayback(c *gin.Context, pb *service.PlaybackService) {
	c.JSON(http.StatusOK, models.SuccessResponse(pb.Frame()))
}

func StartPlayback(c *gin.Context, pb *service.PlaybackService) {
	req := editTargetRequest{Target: models.TargetMain}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorFrom(err))
			return
		}
	}
	if req.Target == "" {
		req.Target = models.TargetMain
	}
	if req.Target != models.TargetMain && req.Target != models.TargetRelease {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("target must be main or release"))
		return
	}

	started, err := pb.Start(req.Target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"started": started,
		"frame":   pb.Frame(),
	}))
}

func StopPlayback(c *gin.Context, pb *service.PlaybackService) {
	pb.Stop()
	c.JSON(http.StatusOK, models.SuccessResponse(pb.Frame()))
}

func ResetPlayback(c *gin.Context, pb *service.PlaybackService) {
	pb.Reset()
	c.JSON(http.StatusOK, models.SuccessResponse(pb.Frame()))
}
