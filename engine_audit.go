package goOTC

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

const (
	auditEventCodeIssued           = "code_issued"
	auditEventCodeSendThrottled    = "code_send_throttled"
	auditEventCodeRedeemed         = "code_redeemed"
	auditEventCodeRejected         = "code_rejected"
	auditEventCodeInvalidated      = "code_invalidated"
	auditEventCodesSwept           = "codes_swept"
	auditEventPasswordSet          = "password_set"
	auditEventPasswordRemoved      = "password_removed"
	auditEventPasswordVerified     = "password_verified"
	auditEventPasswordRejected     = "password_rejected"
	auditEventPasswordLockout      = "password_lockout_triggered"
	auditEventPasswordRehashed     = "password_rehashed"
	auditEventPasswordPolicyReject = "password_policy_rejected"
)

// AuditErrorCode is the stable error vocabulary of AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidInput AuditErrorCode = "invalid_input"
	auditErrUnavailable  AuditErrorCode = "backend_unavailable"
	auditErrCanceled     AuditErrorCode = "canceled"
	auditErrInternal     AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.clock(),
		EventType: eventType,
		Subject:   e.auditSubject(subject),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) auditSubject(subject string) string {
	if subject == "" || !e.config.Audit.HashSubjects {
		return subject
	}
	sum := sha256.Sum256([]byte(subject))
	return hex.EncodeToString(sum[:8])
}

func reasonMetadata(reason string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": reason}
	}
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidRecipient),
		errors.Is(err, ErrInvalidIdentity),
		errors.Is(err, ErrInvalidValidity):
		return auditErrInvalidInput
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	case errors.Is(err, ErrServiceUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
