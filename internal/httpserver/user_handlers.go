package httpserver

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"seatshare/internal/domain"
	"seatshare/internal/service"
)

type updateProfileRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,max=100"`
	Bio         *string `json:"bio" validate:"omitempty,max=500"`
}

// @Summary      Get user profile
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        userID path string true "User ID"
// @Success      200  {object}  service.Profile
// @Failure      404  {object}  errorResponse
// @Router       /users/{userID} [get]
func handleGetUser(userSvc *service.UserService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := userSvc.GetProfile(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

// @Summary      Update own profile
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body updateProfileRequest true "Fields to change"
// @Success      200  {object}  service.Profile
// @Failure      400  {object}  errorResponse
// @Router       /users/me [patch]
func handleUpdateProfile(userSvc *service.UserService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateProfileRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		profile, err := userSvc.UpdateProfile(r.Context(), CurrentUser(r).ID, service.UpdateProfileInput{
			DisplayName: req.DisplayName,
			Bio:         req.Bio,
		})
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

// @Summary      Upload avatar
// @Description  Multipart upload with the image in field "file" (jpeg, png, webp or gif)
// @Tags         users
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Avatar image"
// @Success      200  {object}  service.Profile
// @Failure      400  {object}  errorResponse
// @Router       /users/me/avatar [put]
func handleUploadAvatar(userSvc *service.UserService, maxBytes int64, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<10))
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			writeError(w, r, log, fmt.Errorf("%w: avatar must be a multipart upload of at most %d bytes", domain.ErrValidation, maxBytes))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, r, log, fmt.Errorf("%w: missing file", domain.ErrValidation))
			return
		}
		defer file.Close()
		if header.Size > maxBytes {
			writeError(w, r, log, fmt.Errorf("%w: avatar is larger than %d bytes", domain.ErrValidation, maxBytes))
			return
		}

		profile, err := userSvc.UploadAvatar(r.Context(), CurrentUser(r).ID, header.Header.Get("Content-Type"), file)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

// @Summary      Remove avatar
// @Tags         users
// @Security     BearerAuth
// @Success      204
// @Router       /users/me/avatar [delete]
func handleDeleteAvatar(userSvc *service.UserService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := userSvc.DeleteAvatar(r.Context(), CurrentUser(r).ID); err != nil {
			writeError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
