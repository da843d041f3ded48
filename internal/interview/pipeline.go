package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/interviewcoach/internal/analysis"
	"github.com/MrWong99/interviewcoach/internal/observe"
)

// workItem is one answered question queued for feedback. It carries copies of
// everything the worker needs so the worker never reads session state.
type workItem struct {
	id       int
	question string
	answer   string
	duration time.Duration
}

// startPipeline queues every question with a non-blank answer and starts a
// single worker that grades them one at a time in ascending ID order. With
// nothing to grade the session moves straight to REVIEWING.
func (o *Orchestrator) startPipeline() {
	ids := o.session.feedbackTargets()
	if len(ids) == 0 {
		o.finishPipeline(o.epoch)
		return
	}

	queue := make(chan workItem, len(ids))
	next := o.session
	for _, id := range ids {
		q := next.Questions[id]
		queue <- workItem{id: id, question: q.Text, answer: q.Answer.Text, duration: q.Answer.Duration}
		var err error
		if next, err = next.withFeedbackStatus(id, FeedbackPending); err != nil {
			slog.Error("failed to queue feedback", "question_id", id, "err", err)
		}
	}
	close(queue)
	o.apply(next)

	ctx, cancel := context.WithCancel(o.runCtx)
	o.cancelPipeline = cancel
	epoch := o.epoch
	slog.Info("feedback pipeline started", "session_id", o.session.ID, "items", len(ids))

	o.workers.Add(1)
	go o.drain(ctx, epoch, queue)
}

// drain processes queue in order. Each result is posted back to the event
// loop before the next item starts so the presentation sees items complete
// one by one.
func (o *Orchestrator) drain(ctx context.Context, epoch uint64, queue <-chan workItem) {
	defer o.workers.Done()
	for item := range queue {
		if ctx.Err() != nil {
			return
		}
		wpm := WordsPerMinute(item.answer, item.duration, o.defaultWPM)
		fb, err := o.analyzer.GetFeedback(ctx, analysis.FeedbackRequest{
			Question:       item.question,
			Answer:         item.answer,
			WordsPerMinute: wpm,
		})
		if errors.Is(err, analysis.ErrPrecondition) {
			panic(fmt.Sprintf("interview: feedback requested for question %d in violation of its contract: %v", item.id, err))
		}
		id := item.id
		o.post(func() { o.onFeedback(epoch, id, fb, err) })
	}
	if ctx.Err() != nil {
		return
	}
	o.post(func() { o.finishPipeline(epoch) })
}

// onFeedback attaches one result. Failures leave the feedback absent.
func (o *Orchestrator) onFeedback(epoch uint64, id int, fb *analysis.Feedback, err error) {
	if epoch != o.epoch {
		return
	}
	var (
		next   Session
		terr   error
		status = observe.StatusOK
	)
	if err != nil || fb == nil {
		status = observe.StatusFailed
		slog.Warn("feedback unavailable", "session_id", o.session.ID, "question_id", id, "err", err)
		next, terr = o.session.withFeedbackFailure(id)
	} else {
		next, terr = o.session.withFeedback(id, fb)
	}
	if terr != nil {
		slog.Error("failed to record feedback", "question_id", id, "err", terr)
		return
	}
	if o.metrics != nil {
		o.metrics.RecordFeedbackItem(o.runCtx, status)
	}
	o.apply(next)
}

// finishPipeline moves the session to REVIEWING.
func (o *Orchestrator) finishPipeline(epoch uint64) {
	if epoch != o.epoch {
		return
	}
	if o.cancelPipeline != nil {
		o.cancelPipeline()
		o.cancelPipeline = nil
	}
	next, err := o.session.finishReview()
	if err != nil {
		slog.Error("failed to finish review", "err", err)
		return
	}
	o.apply(next)
}
