package api

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/K3Y-Ltd/across-block-object-and-file-storage/internal/notify"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/internal/storage/s3"
	gwerrors "github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/errors"
)

// Operation names used for metrics labels
const (
	opList         = "list"
	opUpload       = "upload"
	opDownload     = "download"
	opMetadata     = "metadata"
	opDelete       = "delete"
	opListBuckets  = "list_buckets"
	opCreateBucket = "create_bucket"
	opDeleteBucket = "delete_bucket"
)

// multipartMemory is how much of an upload form is held in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// target is the namespace and bucket a request resolved to.
type target struct {
	namespace string
	bucket    string
}

// operationFunc handles one request against a resolved target. It writes
// the response itself and returns the transferred size and the failure, if
// any, for instrumentation.
type operationFunc func(w http.ResponseWriter, r *http.Request, t target) (int64, error)

func (s *Server) registerObjectRoutes(mux *http.ServeMux, prefix string, resolve func(*http.Request) target) {
	mux.HandleFunc("GET "+prefix+"/files", s.instrument(opList, resolve, s.handleListFiles))
	mux.HandleFunc("POST "+prefix+"/files", s.instrument(opUpload, resolve, s.handleUploadFile))
	mux.HandleFunc("GET "+prefix+"/files/{filename}", s.instrument(opDownload, resolve, s.handleGetFile))
	mux.HandleFunc("GET "+prefix+"/files/{filename}/metadata", s.instrument(opMetadata, resolve, s.handleGetFileMetadata))
	mux.HandleFunc("DELETE "+prefix+"/files/{filename}", s.instrument(opDelete, resolve, s.handleDeleteFile))
}

func (s *Server) instrument(operation string, resolve func(*http.Request) target, fn operationFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := resolve(r)
		start := time.Now()
		size, err := fn(w, r, t)
		s.observe(operation, t.namespace, time.Since(start), size, err)
	}
}

// observe feeds an outcome to metrics and health. Only internal failures
// count against storage health.
func (s *Server) observe(operation, ns string, duration time.Duration, size int64, err error) {
	if s.metrics != nil {
		s.metrics.RecordOperation(operation, ns, duration, size, err == nil)
		if err != nil {
			s.metrics.RecordError(operation, ns, err)
		}
	}
	if s.healthTracker != nil {
		switch {
		case err == nil:
			s.healthTracker.RecordSuccess(StorageComponent)
		case gwerrors.CategoryOf(err) == gwerrors.CategoryInternal:
			s.healthTracker.RecordError(StorageComponent, err)
		}
	}
}

// handleListFiles lists every key in the bucket. A missing bucket and an
// empty bucket produce the same 404.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request, t target) (int64, error) {
	files := make([]string, 0)
	for info, err := range s.store.ListObjects(r.Context(), t.bucket) {
		if err != nil {
			if gwerrors.IsNotFound(err) {
				s.respondError(w, r, http.StatusNotFound, gwerrors.ErrCodeBucketNotFound, "Bucket not found or is empty", err)
			} else {
				s.respondError(w, r, http.StatusInternalServerError, gwerrors.CodeOf(err), "Error listing files", err)
			}
			return 0, err
		}
		files = append(files, info.Key)
	}

	if len(files) == 0 {
		s.respondError(w, r, http.StatusNotFound, gwerrors.ErrCodeBucketNotFound, "Bucket not found or is empty", nil)
		return 0, nil
	}

	s.respondJSON(w, http.StatusOK, map[string][]string{"files": files})
	return 0, nil
}

// handleUploadFile buffers the multipart "file" part and stores it in one
// round-trip with the optional "metadata" form value as its sidecar.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request, t target) (int64, error) {
	if limit := s.config.MaxUploadBytes; limit > 0 {
		if r.ContentLength > limit {
			gwErr := gwerrors.NewError(gwerrors.ErrCodePayloadTooLarge, "Upload exceeds the maximum allowed size")
			s.respondGatewayError(w, r, gwErr)
			return 0, gwErr
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			gwErr := gwerrors.Wrap(err, gwerrors.ErrCodePayloadTooLarge, "Upload exceeds the maximum allowed size")
			s.respondGatewayError(w, r, gwErr)
			return 0, gwErr
		}
		gwErr := gwerrors.Wrap(err, gwerrors.ErrCodeValidationFailed, "Request must be multipart/form-data with a 'file' field")
		s.respondGatewayError(w, r, gwErr)
		return 0, gwErr
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		gwErr := gwerrors.Wrap(err, gwerrors.ErrCodeValidationFailed, "Field 'file' is required")
		s.respondGatewayError(w, r, gwErr)
		return 0, gwErr
	}
	defer file.Close()

	key, gwErr := uploadKey(header)
	if gwErr != nil {
		s.respondGatewayError(w, r, gwErr)
		return 0, gwErr
	}

	data, err := io.ReadAll(file)
	if err != nil {
		gwErr := gwerrors.Wrap(err, gwerrors.ErrCodeInternalError, "Failed to upload file")
		s.respondGatewayError(w, r, gwErr)
		return 0, gwErr
	}

	metadata := r.FormValue("metadata")
	if err := s.store.PutObject(r.Context(), t.bucket, key, data, metadata); err != nil {
		s.respondError(w, r, http.StatusInternalServerError, gwerrors.CodeOf(err), "Failed to upload file", err)
		return int64(len(data)), err
	}

	if s.events != nil {
		s.events.Publish(notify.Event{
			Name:      notify.EventObjectCreated,
			Namespace: t.namespace,
			Bucket:    t.bucket,
			Key:       key,
			Size:      int64(len(data)),
			RequestID: RequestIDFromContext(r.Context()),
		})
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"message": "File uploaded successfully"})
	return int64(len(data)), nil
}

// uploadKey returns the object key for an uploaded part. The filename is read
// from the raw Content-Disposition because multipart.FileHeader keeps only
// its last path element, and keys like "day1/a.pcap" must survive intact.
func uploadKey(header *multipart.FileHeader) (string, *gwerrors.GatewayError) {
	name := header.Filename
	if _, params, err := mime.ParseMediaType(header.Header.Get("Content-Disposition")); err == nil {
		if raw, ok := params["filename"]; ok {
			name = raw
		}
	}

	if name == "" {
		return "", gwerrors.NewError(gwerrors.ErrCodeValidationFailed, "Uploaded file has no filename")
	}

	for _, segment := range strings.Split(name, "/") {
		if segment == ".." {
			return "", gwerrors.NewError(gwerrors.ErrCodeValidationFailed, "Filename must not contain '..' segments")
		}
	}
	return name, nil
}

// handleGetFile streams the object with its stored content type.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request, t target) (int64, error) {
	filename := r.PathValue("filename")

	obj, err := s.store.GetObject(r.Context(), t.bucket, filename)
	if err != nil {
		if gwerrors.IsNotFound(err) {
			s.respondError(w, r, http.StatusNotFound, gwerrors.CodeOf(err), "File not found", err)
		} else {
			s.respondError(w, r, http.StatusInternalServerError, gwerrors.CodeOf(err), "Error retrieving file", err)
		}
		return 0, err
	}
	defer obj.Close()

	h := w.Header()
	h.Set("Content-Type", obj.Info.ContentType)
	h.Set("Content-Length", strconv.FormatInt(obj.Info.Size, 10))
	if obj.Info.ETag != "" {
		h.Set("ETag", obj.Info.ETag)
	}
	if !obj.Info.LastModified.IsZero() {
		h.Set("Last-Modified", obj.Info.LastModified.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return 0, nil
	}

	n, err := io.Copy(w, obj.Body)
	if err != nil {
		// Headers are already sent; the client sees a truncated body.
		s.logger.Warn("download interrupted",
			"request_id", RequestIDFromContext(r.Context()),
			"bucket", t.bucket,
			"key", filename,
			"written", n,
			"error", err)
		if r.Context().Err() != nil {
			return n, nil
		}
		return n, gwerrors.Wrap(err, gwerrors.ErrCodeStorageRead, "download interrupted")
	}
	return n, nil
}

// handleGetFileMetadata returns the stored sidecar string, or {} when none was attached.
func (s *Server) handleGetFileMetadata(w http.ResponseWriter, r *http.Request, t target) (int64, error) {
	filename := r.PathValue("filename")

	info, err := s.store.StatObject(r.Context(), t.bucket, filename)
	if err != nil {
		if gwerrors.IsNotFound(err) {
			s.respondError(w, r, http.StatusNotFound, gwerrors.CodeOf(err), "Bucket or file not found", err)
		} else {
			s.respondError(w, r, http.StatusInternalServerError, gwerrors.CodeOf(err), "Error retrieving file metadata", err)
		}
		return 0, err
	}

	if value, ok := s3.DecodeMetadata(info.Metadata); ok {
		s.respondJSON(w, http.StatusOK, map[string]any{"metadata": value})
		return 0, nil
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"metadata": struct{}{}})
	return 0, nil
}

// handleDeleteFile removes the object. The store probes for existence, and
// any failure is reported as a missing file.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request, t target) (int64, error) {
	filename := r.PathValue("filename")

	if err := s.store.RemoveObject(r.Context(), t.bucket, filename); err != nil {
		s.respondError(w, r, http.StatusNotFound, gwerrors.ErrCodeObjectNotFound, "File not found", err)
		return 0, err
	}

	if s.events != nil {
		s.events.Publish(notify.Event{
			Name:      notify.EventObjectRemoved,
			Namespace: t.namespace,
			Bucket:    t.bucket,
			Key:       filename,
			RequestID: RequestIDFromContext(r.Context()),
		})
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"message": "File deleted"})
	return 0, nil
}
