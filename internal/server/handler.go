package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	slices "golang.org/x/exp/slices"

	"github.com/Eyevinn/mosh264/internal"
	"github.com/Eyevinn/mosh264/internal/media"
	"github.com/Eyevinn/mosh264/internal/mosh"
	"github.com/Eyevinn/mosh264/internal/nal"
)

// Containers ffmpeg extracts from, plus formats the core reads directly.
var allowedExtensions = []string{".mp4", ".mov", ".avi", ".mkv", ".ts", ".264", ".h264"}

type processResponse struct {
	VideoURL string     `json:"videoUrl"`
	Stats    mosh.Stats `json:"stats"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("parsing upload: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	cfg, err := configFromForm(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	session := uuid.NewString()
	log := s.log.WithField("session", session)

	var temps []string
	defer func() {
		for _, f := range temps {
			if err := internal.RemoveFileIfExists(f); err != nil {
				log.WithError(err).Warn("removing temp file")
			}
		}
	}()

	var clips [2][]byte
	for i, field := range []string{"video1", "video2"} {
		file, hdr, err := r.FormFile(field)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("missing upload %q", field))
			return
		}
		clip, used, err := s.prepareClip(r, session, field, file, hdr)
		file.Close()
		temps = append(temps, used...)
		if err != nil {
			s.writeProcessError(w, log, err)
			return
		}
		clips[i] = clip
	}

	result, err := mosh.Process(clips[0], clips[1], cfg, nil)
	if err != nil {
		s.writeProcessError(w, log, err)
		return
	}

	rawOut := filepath.Join(s.cfg.UploadDir, fmt.Sprintf("final_%s.264", session))
	temps = append(temps, rawOut)
	if err := os.WriteFile(rawOut, result.Data, 0644); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	outName := fmt.Sprintf("output_%s.mp4", session)
	outPath := filepath.Join(s.cfg.UploadDir, outName)
	if err := s.transcoder.RemuxToMP4(r.Context(), rawOut, outPath); err != nil {
		s.writeProcessError(w, log, err)
		return
	}

	log.WithFields(logrus.Fields{
		"removed":    result.Stats.Removed,
		"duplicated": result.Stats.Duplicated,
		"corrupted":  result.Stats.Corrupted,
		"dropped":    result.Stats.Dropped,
	}).Info("processing done")

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(processResponse{
		VideoURL: "/uploads/" + outName,
		Stats:    result.Stats,
	})
}

// prepareClip stores one upload and turns it into a raw Annex-B
// stream: raw inputs are read back directly, TS inputs are demuxed
// natively, containers go through the external extractor. Returns the
// temp files it created so the caller can clean up.
func (s *Server) prepareClip(r *http.Request, session, field string, file multipart.File, hdr *multipart.FileHeader) ([]byte, []string, error) {
	ext := strings.ToLower(filepath.Ext(hdr.Filename))
	if !slices.Contains(allowedExtensions, ext) {
		return nil, nil, fmt.Errorf("%w: file type %q not allowed", mosh.ErrInvalidConfig, ext)
	}

	inPath := filepath.Join(s.cfg.UploadDir, fmt.Sprintf("%s_%s%s", field, session, ext))
	temps := []string{inPath}
	dst, err := os.Create(inPath)
	if err != nil {
		return nil, temps, err
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		return nil, temps, fmt.Errorf("saving upload: %w", err)
	}
	dst.Close()

	switch ext {
	case ".264", ".h264", ".ts":
		clip, err := internal.LoadElementaryStream(r.Context(), inPath)
		return clip, temps, err
	default:
		rawPath := filepath.Join(s.cfg.UploadDir, fmt.Sprintf("%s_%s.264", field, session))
		temps = append(temps, rawPath)
		if err := s.transcoder.ExtractRawStream(r.Context(), inPath, rawPath); err != nil {
			return nil, temps, err
		}
		clip, err := os.ReadFile(rawPath)
		return clip, temps, err
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid file name"))
		return
	}
	http.ServeFile(w, r, filepath.Join(s.cfg.UploadDir, name))
}

// configFromForm maps the upload form onto a core config. Percentage
// fields come in as 0-100 integers, matching the UI sliders, and are
// scaled to [0,1]. Unparsable values fall back to the defaults rather
// than failing the request.
func configFromForm(r *http.Request) (mosh.Config, error) {
	cfg := mosh.DefaultConfig()
	cfg.RemoveParameterSets = r.FormValue("remove_spspps") == "yes"

	mode, err := mosh.ParseIFrameMode(r.FormValue("remove_iframes"))
	if err != nil {
		return cfg, err
	}
	cfg.IFrameMode = mode

	cfg.OffsetSeconds = formFloat(r, "offset", cfg.OffsetSeconds)
	cfg.DupFactor = formInt(r, "duplicate_pframes", cfg.DupFactor)
	cfg.DupProbability = formPercent(r, "duplicate_probability", cfg.DupProbability)
	cfg.ReorderProbability = formPercent(r, "reorder_intensity", cfg.ReorderProbability)
	cfg.ReorderWindow = formInt(r, "reorder_window_size", cfg.ReorderWindow)
	cfg.CorruptProbability = formPercent(r, "corrupt_pframes", cfg.CorruptProbability)
	cfg.CorruptIntensity = formPercent(r, "corruption_intensity", cfg.CorruptIntensity)
	cfg.DropProbability = formPercent(r, "drop_frame_percentage", cfg.DropProbability)

	return cfg, cfg.Validate()
}

func formFloat(r *http.Request, key string, def float64) float64 {
	v, err := strconv.ParseFloat(r.FormValue(key), 64)
	if err != nil {
		return def
	}
	return v
}

func formInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.FormValue(key))
	if err != nil {
		return def
	}
	return v
}

func formPercent(r *http.Request, key string, def float64) float64 {
	v, err := strconv.ParseFloat(r.FormValue(key), 64)
	if err != nil {
		return def
	}
	return v / 100
}

func (s *Server) writeProcessError(w http.ResponseWriter, log *logrus.Entry, err error) {
	var toolErr *media.ToolError
	switch {
	case errors.As(err, &toolErr):
		log.WithError(err).WithField("stderr", toolErr.Stderr).Error("external tool failed")
		s.writeError(w, http.StatusBadGateway, err)
	case errors.Is(err, mosh.ErrInvalidConfig),
		errors.Is(err, mosh.ErrEmptyInput),
		errors.Is(err, nal.ErrMalformedStream):
		s.writeError(w, http.StatusBadRequest, err)
	default:
		log.WithError(err).Error("processing failed")
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}
