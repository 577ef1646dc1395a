package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vladimiradmaev/dish-journal/internal/database"
	"github.com/vladimiradmaev/dish-journal/internal/domain"
	apperrors "github.com/vladimiradmaev/dish-journal/internal/errors"
	"github.com/vladimiradmaev/dish-journal/internal/utils"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type confirmRequest struct {
	SelectedDishName string                      `json:"selected_dish_name"`
	Components       []domain.ConfirmedComponent `json:"components"`
}

func userJSON(u *database.User) gin.H {
	return gin.H{"id": u.ID, "username": u.Username, "role": u.Role}
}

func rawJSON(data []byte) json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	return json.RawMessage(data)
}

func serializeRecord(rec *database.DishImageQuery) gin.H {
	var target *string
	if rec.TargetDate != nil {
		s := rec.TargetDate.UTC().Format(time.RFC3339)
		target = &s
	}
	return gin.H{
		"id":            rec.ID,
		"image_url":     rec.ImageURL,
		"dish_position": rec.DishPosition,
		"created_at":    rec.CreatedAt.UTC().Format(time.RFC3339),
		"target_date":   target,
		"result_openai": rawJSON(rec.ResultOpenAI),
		"result_gemini": rawJSON(rec.ResultGemini),
	}
}

func (h *handler) setTokenCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(tokenCookie, token, maxAge, "/", "", h.SecureCookies, true)
}

func (h *handler) login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("Invalid request body"))
		return
	}
	user, err := h.Users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	token, err := h.Tokens.Issue(user.ID)
	if err != nil {
		respondError(c, apperrors.NewInternalError(err))
		return
	}
	h.setTokenCookie(c, token, h.Tokens.MaxAge())
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Login successful", "user": userJSON(user)})
}

func (h *handler) logout(c *gin.Context) {
	h.setTokenCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

func (h *handler) register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("Invalid request body"))
		return
	}
	user, err := h.Users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "user": userJSON(user)})
}

func (h *handler) me(c *gin.Context) {
	user, err := h.Users.GetByID(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userJSON(user))
}

func (h *handler) dashboard(c *gin.Context) {
	now := time.Now().UTC()
	year, err := strconv.Atoi(c.DefaultQuery("year", strconv.Itoa(now.Year())))
	if err != nil {
		year = now.Year()
	}
	month, err := strconv.Atoi(c.DefaultQuery("month", strconv.Itoa(int(now.Month()))))
	if err != nil {
		month = int(now.Month())
	}

	view, err := h.Calendar.MonthView(c.Request.Context(), currentUser(c), year, month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func pathDate(c *gin.Context) (time.Time, error) {
	var parts [3]int
	for i, name := range []string{"year", "month", "day"} {
		n, err := strconv.Atoi(c.Param(name))
		if err != nil {
			return time.Time{}, apperrors.NewValidationError("Invalid date")
		}
		parts[i] = n
	}
	d, err := utils.ParseDate(parts[0], parts[1], parts[2])
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("Invalid date")
	}
	return d, nil
}

func pathID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperrors.NewNotFoundError("record", c.Param("id"))
	}
	return uint(id), nil
}

func (h *handler) dateView(c *gin.Context) {
	date, err := pathDate(c)
	if err != nil {
		respondError(c, err)
		return
	}
	view, err := h.Calendar.DayView(c.Request.Context(), currentUser(c), date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handler) upload(c *gin.Context) {
	date, err := pathDate(c)
	if err != nil {
		respondError(c, err)
		return
	}
	position, err := strconv.Atoi(c.PostForm("dish_position"))
	if err != nil {
		respondError(c, apperrors.NewValidationError("Invalid dish position. Must be between 1 and 5"))
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, apperrors.NewValidationError("Image file is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, apperrors.NewInternalError(err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		respondError(c, apperrors.NewInternalError(err))
		return
	}
	if len(data) > maxUploadBytes {
		respondError(c, apperrors.NewValidationError("Image is too large"))
		return
	}

	rec, err := h.Dishes.Upload(c.Request.Context(), currentUser(c), date, position, data, fh.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Image uploaded. Analysis in progress...",
		"query":   serializeRecord(rec),
	})
}

func (h *handler) item(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	rec, current, err := h.Dishes.GetCurrent(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	p, _ := rec.Payload()

	body := serializeRecord(rec)
	body["has_openai_result"] = len(rec.ResultOpenAI) > 0
	body["has_gemini_result"] = len(rec.ResultGemini) > 0
	body["current_iteration"] = current
	body["analysis_state"] = domain.StateOf(p)
	c.JSON(http.StatusOK, body)
}

func (h *handler) iterations(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(domain.DefaultRecentLimit)))
	if err != nil {
		respondError(c, apperrors.NewValidationError("Invalid limit"))
		return
	}
	its, err := h.Dishes.ListRecent(c.Request.Context(), currentUser(c), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if its == nil {
		its = []domain.Iteration{}
	}
	c.JSON(http.StatusOK, gin.H{"iterations": its})
}

func (h *handler) confirmStep1(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("Invalid request body"))
		return
	}
	if err := h.Dishes.ConfirmStep1(c.Request.Context(), currentUser(c), id, req.SelectedDishName, req.Components); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Step 1 confirmed. Nutrition analysis in progress..."})
}

func (h *handler) updateMetadata(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var req domain.MetadataUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("Invalid request body"))
		return
	}
	ok, err := h.Dishes.UpdateMetadata(c.Request.Context(), currentUser(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		respondError(c, apperrors.NewNotFoundError("analysis", id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Metadata updated"})
}

func (h *handler) reanalyze(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var req domain.MetadataUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("Invalid request body"))
		return
	}
	if err := h.Dishes.Reanalyze(c.Request.Context(), currentUser(c), id, req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Re-analysis in progress..."})
}

func (h *handler) deleteItem(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Dishes.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Record deleted"})
}
