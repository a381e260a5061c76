package api

import (
	"fmt"
	"net/http"
	"time"

	gwerrors "github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/errors"
)

// Bucket endpoints are not scoped to a namespace.
const adminNamespace = "admin"

func (s *Server) handleListBuckets(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	buckets, err := s.store.ListBuckets(r.Context())
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, gwerrors.CodeOf(err), "Error listing buckets", err)
		s.observe(opListBuckets, adminNamespace, time.Since(start), 0, err)
		return
	}

	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, b.Name)
	}
	s.respondJSON(w, http.StatusOK, map[string][]string{"buckets": names})
	s.observe(opListBuckets, adminNamespace, time.Since(start), 0, nil)
}

// handleCreateBucket reads bucket_name from the form body. The existence
// check and create are separate calls, so a concurrent create can still
// surface as a conflict from the store.
func (s *Server) handleCreateBucket(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	err := s.createBucket(w, r)
	s.observe(opCreateBucket, adminNamespace, time.Since(start), 0, err)
}

func (s *Server) createBucket(w http.ResponseWriter, r *http.Request) error {
	name := r.PostFormValue("bucket_name")
	if name == "" {
		gwErr := gwerrors.NewError(gwerrors.ErrCodeValidationFailed, "Field 'bucket_name' is required")
		s.respondGatewayError(w, r, gwErr)
		return gwErr
	}
	bucket := s.registry.Generic(name)

	exists, err := s.store.BucketExists(r.Context(), bucket)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, gwerrors.CodeOf(err), "Error creating bucket", err)
		return err
	}
	if exists {
		gwErr := gwerrors.NewError(gwerrors.ErrCodeBucketExists, "Bucket already exists").
			WithContext("bucket", bucket)
		s.respondError(w, r, http.StatusBadRequest, gwErr.Code, gwErr.Message, nil)
		return gwErr
	}

	if err := s.store.CreateBucket(r.Context(), bucket); err != nil {
		if gwerrors.IsConflict(err) {
			s.respondError(w, r, http.StatusBadRequest, gwerrors.ErrCodeBucketExists, "Bucket already exists", err)
		} else {
			s.respondError(w, r, http.StatusInternalServerError, gwerrors.CodeOf(err), "Error creating bucket", err)
		}
		return err
	}

	s.logger.Info("bucket created", "bucket", bucket, "request_id", RequestIDFromContext(r.Context()))
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Bucket '%s' created successfully", bucket),
	})
	return nil
}

// handleDeleteBucket refuses to remove a bucket that still holds objects.
func (s *Server) handleDeleteBucket(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	err := s.deleteBucket(w, r)
	s.observe(opDeleteBucket, adminNamespace, time.Since(start), 0, err)
}

func (s *Server) deleteBucket(w http.ResponseWriter, r *http.Request) error {
	bucket := s.registry.Generic(r.PathValue("bucket_name"))

	exists, err := s.store.BucketExists(r.Context(), bucket)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, gwerrors.CodeOf(err), "Error deleting bucket", err)
		return err
	}
	if !exists {
		gwErr := gwerrors.NewError(gwerrors.ErrCodeBucketNotFound, "Bucket not found").WithContext("bucket", bucket)
		s.respondGatewayError(w, r, gwErr)
		return gwErr
	}

	// One object is enough to refuse
	for _, err := range s.store.ListObjects(r.Context(), bucket) {
		if err != nil {
			if gwerrors.IsNotFound(err) {
				s.respondError(w, r, http.StatusNotFound, gwerrors.ErrCodeBucketNotFound, "Bucket not found", err)
			} else {
				s.respondError(w, r, http.StatusInternalServerError, gwerrors.CodeOf(err), "Error deleting bucket", err)
			}
			return err
		}
		gwErr := gwerrors.NewError(gwerrors.ErrCodeBucketNotEmpty, "Bucket is not empty").WithContext("bucket", bucket)
		s.respondError(w, r, http.StatusBadRequest, gwErr.Code, gwErr.Message, nil)
		return gwErr
	}

	if err := s.store.DeleteBucket(r.Context(), bucket); err != nil {
		switch {
		case gwerrors.IsInvalidState(err):
			s.respondError(w, r, http.StatusBadRequest, gwerrors.ErrCodeBucketNotEmpty, "Bucket is not empty", err)
		case gwerrors.IsNotFound(err):
			s.respondError(w, r, http.StatusNotFound, gwerrors.ErrCodeBucketNotFound, "Bucket not found", err)
		default:
			s.respondError(w, r, http.StatusInternalServerError, gwerrors.CodeOf(err), "Error deleting bucket", err)
		}
		return err
	}

	s.logger.Info("bucket deleted", "bucket", bucket, "request_id", RequestIDFromContext(r.Context()))
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Bucket '%s' deleted successfully", bucket),
	})
	return nil
}
