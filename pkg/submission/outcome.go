package submission

import (
	"time"

	"gitlab.com/Cacophony/Playlister/pkg/records"
)

// Request is one extracted video post
type Request struct {
	VideoID     string
	GuildID     string
	ChannelID   string
	SubmitterID string
	MessageID   string
	SubmittedAt time.Time
}

type Status int

const (
	Accepted Status = iota
	Rejected
	Failed
)

func (s Status) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	}

	return "unknown"
}

type Reason string

const (
	ReasonNone                          Reason = ""
	ReasonInvalidVideoID                Reason = "invalid_video_id"
	ReasonChannelNotWatched             Reason = "channel_not_watched"
	ReasonVideoBanned                   Reason = "video_banned"
	ReasonUserBanned                    Reason = "user_banned"
	ReasonDuplicate                     Reason = "duplicate"
	ReasonVideoUnavailable              Reason = "video_unavailable"
	ReasonPolicyCheckFailed             Reason = "policy_check_failed"
	ReasonTimeout                       Reason = "timeout"
	ReasonRemoteFailure                 Reason = "remote_failure"
	ReasonRemoteFatal                   Reason = "remote_fatal"
	ReasonPersistence                   Reason = "persistence"
	ReasonPersistenceAfterRemoteSuccess Reason = "persistence_after_remote_success"
	ReasonServiceUnavailable            Reason = "service_unavailable"
)

// Outcome is the result of a submission attempt. Err is set for failures.
type Outcome struct {
	Status     Status
	Reason     Reason
	Submission *records.Submission
	Err        error
}

func accepted(submission *records.Submission) Outcome {
	return Outcome{
		Status:     Accepted,
		Submission: submission,
	}
}

func rejected(reason Reason) Outcome {
	return Outcome{
		Status: Rejected,
		Reason: reason,
	}
}

func failed(reason Reason, err error) Outcome {
	return Outcome{
		Status: Failed,
		Reason: reason,
		Err:    err,
	}
}

// Silent reports whether the poster should not be told about the outcome
func (o Outcome) Silent() bool {
	return o.Reason == ReasonChannelNotWatched
}

// Fatal reports whether submissions are halted because of this outcome
func (o Outcome) Fatal() bool {
	return o.Reason == ReasonRemoteFatal || o.Reason == ReasonServiceUnavailable
}

// DeleteMessage reports whether the submitted message should be removed.
// Messages stay for transient failures, so the poster can try again.
func (o Outcome) DeleteMessage() bool {
	switch o.Status {
	case Rejected:
		return !o.Silent()
	case Failed:
		return o.Fatal()
	}

	return false
}
