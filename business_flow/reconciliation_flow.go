package businessflow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/amirphl/Geovid/app/dto"
	"github.com/amirphl/Geovid/models"
	"github.com/amirphl/Geovid/repository"
	"github.com/amirphl/Geovid/utils"
	"github.com/xuri/excelize/v2"
)

const tagUsageCounter = "usage_count"

// ReconciliationFlow recomputes denormalized counters from their source tables and
// overwrites the stored values. Every function doubles as the initial backfill.
type ReconciliationFlow interface {
	// ReconcileTagCounters overwrites tags.usage_count with the link count; nil ids means every tag
	ReconcileTagCounters(ctx context.Context, tagIDs []uint) (*dto.ReconcileResponse, error)
	// ReconcileVideoCounters overwrites the given video counters with fact-table counts;
	// nil ids means every video, nil counters means views_count only
	ReconcileVideoCounters(ctx context.Context, videoIDs []uint, counters []models.VideoCounter) (*dto.ReconcileResponse, error)
	// ReconcileAll runs every tag and every video counter family
	ReconcileAll(ctx context.Context) (*dto.ReconcileAllResponse, error)
	TagDriftReport(ctx context.Context, onlyDrifted bool) (*dto.TagDriftReport, error)
	DownloadTagDriftExcel(ctx context.Context, onlyDrifted bool) (string, []byte, error)
}

// ReconciliationFlowImpl implements ReconciliationFlow. It never adjusts a counter
// relative to its old value, so it is safe to run concurrently with the mutation
// engines: at worst it overwrites a concurrent increment that the next run restores.
type ReconciliationFlowImpl struct {
	videoRepo   repository.VideoRepository
	tagRepo     repository.TagRepository
	linkRepo    repository.VideoTagRepository
	counterRepo repository.CounterRepository
	likeRepo    repository.LikeRepository
	commentRepo repository.CommentRepository
	viewRepo    repository.VideoViewRepository
	batchSize   int
	logger      *slog.Logger
}

func NewReconciliationFlow(
	videoRepo repository.VideoRepository,
	tagRepo repository.TagRepository,
	linkRepo repository.VideoTagRepository,
	counterRepo repository.CounterRepository,
	likeRepo repository.LikeRepository,
	commentRepo repository.CommentRepository,
	viewRepo repository.VideoViewRepository,
	batchSize int,
	logger *slog.Logger,
) ReconciliationFlow {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &ReconciliationFlowImpl{
		videoRepo:   videoRepo,
		tagRepo:     tagRepo,
		linkRepo:    linkRepo,
		counterRepo: counterRepo,
		likeRepo:    likeRepo,
		commentRepo: commentRepo,
		viewRepo:    viewRepo,
		batchSize:   batchSize,
		logger:      loggerOrDefault(logger),
	}
}

// pages yields explicit ids in batches, or walks every id of a table when ids is nil
func (f *ReconciliationFlowImpl) pages(ctx context.Context, ids []uint, listAfter func(context.Context, uint, int) ([]uint, error), fn func([]uint)) error {
	if ids != nil {
		for _, batch := range chunk(ids, f.batchSize) {
			fn(batch)
		}
		return nil
	}
	var after uint
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := listAfter(ctx, after, f.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		fn(batch)
		after = batch[len(batch)-1]
		if len(batch) < f.batchSize {
			return nil
		}
	}
}

func explicitIDs(ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return normalizeIDs(ids)
}

func (f *ReconciliationFlowImpl) ReconcileTagCounters(ctx context.Context, tagIDs []uint) (*dto.ReconcileResponse, error) {
	ids, err := explicitIDs(tagIDs)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res := newReconcileResponse()

	err = f.pages(ctx, ids, f.tagRepo.ListIDsAfter, func(batch []uint) {
		f.reconcileTagBatch(ctx, batch, res)
	})
	if err != nil {
		return nil, NewBusinessError("RECONCILE_LIST_FAILED", "failed to list tags", err)
	}

	f.logger.Info("tag counters reconciled",
		"request_id", requestID(ctx),
		"updated", res.UpdatedCount,
		"changed", res.ChangedCount,
		"failed", len(res.Errors),
		"duration", time.Since(start),
	)
	return res, batchOutcome("tag reconciliation", res.UpdatedCount, res.Errors)
}

func (f *ReconciliationFlowImpl) reconcileTagBatch(ctx context.Context, batch []uint, res *dto.ReconcileResponse) {
	tags, err := f.tagRepo.ListByIDs(ctx, batch)
	if err != nil {
		for _, id := range batch {
			res.Errors = append(res.Errors, itemError(f.logger, "reconcile_tags", id, "", fmt.Errorf("failed to load tag: %w", err)))
		}
		return
	}
	counts, err := f.linkRepo.CountByTagIDs(ctx, batch)
	if err != nil {
		for _, id := range batch {
			res.Errors = append(res.Errors, itemError(f.logger, "reconcile_tags", id, "", fmt.Errorf("failed to count links: %w", err)))
		}
		return
	}

	found := make(map[uint]*models.Tag, len(tags))
	for _, t := range tags {
		found[t.ID] = t
	}
	for _, id := range batch {
		tag, ok := found[id]
		if !ok {
			res.Errors = append(res.Errors, itemError(f.logger, "reconcile_tags", id, "", ErrTagNotFound))
			continue
		}
		actual := counts[id]
		if err := f.counterRepo.SetTagUsage(ctx, id, actual); err != nil {
			res.Errors = append(res.Errors, itemError(f.logger, "reconcile_tags", id, tag.Name, fmt.Errorf("failed to write usage_count: %w", err)))
			continue
		}
		recordReconciled(res, id, tagUsageCounter, tag.UsageCount, actual)
	}
}

func (f *ReconciliationFlowImpl) ReconcileVideoCounters(ctx context.Context, videoIDs []uint, counters []models.VideoCounter) (*dto.ReconcileResponse, error) {
	ids, err := explicitIDs(videoIDs)
	if err != nil {
		return nil, err
	}
	if len(counters) == 0 {
		counters = []models.VideoCounter{models.VideoCounterViews}
	}
	for _, c := range counters {
		if !c.Valid() {
			return nil, NewBusinessErrorf("INVALID_COUNTER", "unknown counter %q", ErrInvalidCounter, c)
		}
	}
	start := time.Now()
	res := newReconcileResponse()

	err = f.pages(ctx, ids, f.videoRepo.ListIDsAfter, func(batch []uint) {
		f.reconcileVideoBatch(ctx, batch, counters, res)
	})
	if err != nil {
		return nil, NewBusinessError("RECONCILE_LIST_FAILED", "failed to list videos", err)
	}

	f.logger.Info("video counters reconciled",
		"request_id", requestID(ctx),
		"counters", counters,
		"updated", res.UpdatedCount,
		"changed", res.ChangedCount,
		"failed", len(res.Errors),
		"duration", time.Since(start),
	)
	return res, batchOutcome("video reconciliation", res.UpdatedCount, res.Errors)
}

func (f *ReconciliationFlowImpl) countFacts(ctx context.Context, counter models.VideoCounter, ids []uint) (map[uint]int64, error) {
	switch counter {
	case models.VideoCounterLikes:
		return f.likeRepo.CountByVideoIDs(ctx, ids)
	case models.VideoCounterComments:
		return f.commentRepo.CountByVideoIDs(ctx, ids)
	case models.VideoCounterViews:
		return f.viewRepo.CountByVideoIDs(ctx, ids)
	}
	return nil, ErrInvalidCounter
}

func (f *ReconciliationFlowImpl) reconcileVideoBatch(ctx context.Context, batch []uint, counters []models.VideoCounter, res *dto.ReconcileResponse) {
	videos, err := f.videoRepo.ByFilter(ctx, models.VideoFilter{IDs: batch}, "id ASC", 0, 0)
	if err != nil {
		for _, id := range batch {
			res.Errors = append(res.Errors, itemError(f.logger, "reconcile_videos", id, "", fmt.Errorf("failed to load video: %w", err)))
		}
		return
	}
	found := make(map[uint]*models.Video, len(videos))
	for _, v := range videos {
		found[v.ID] = v
	}
	for _, id := range batch {
		if _, ok := found[id]; !ok {
			res.Errors = append(res.Errors, itemError(f.logger, "reconcile_videos", id, "", ErrVideoNotFound))
		}
	}

	for _, counter := range counters {
		counts, err := f.countFacts(ctx, counter, batch)
		if err != nil {
			for _, v := range videos {
				res.Errors = append(res.Errors, itemError(f.logger, "reconcile_videos", v.ID, string(counter), fmt.Errorf("failed to count facts: %w", err)))
			}
			continue
		}
		for _, v := range videos {
			actual := counts[v.ID]
			if err := f.counterRepo.SetVideoCounter(ctx, v.ID, counter, actual); err != nil {
				res.Errors = append(res.Errors, itemError(f.logger, "reconcile_videos", v.ID, string(counter), fmt.Errorf("failed to write %s: %w", counter, err)))
				continue
			}
			recordReconciled(res, v.ID, string(counter), v.Counter(counter), actual)
		}
	}
}

func (f *ReconciliationFlowImpl) ReconcileAll(ctx context.Context) (*dto.ReconcileAllResponse, error) {
	out := &dto.ReconcileAllResponse{StartedAt: utils.UTCNow()}

	tags, err := f.ReconcileTagCounters(ctx, nil)
	if err != nil && tags == nil {
		return nil, err
	}
	out.Tags = tags

	videos, verr := f.ReconcileVideoCounters(ctx, nil, models.AllVideoCounters)
	if verr != nil && videos == nil {
		return nil, verr
	}
	out.Videos = videos
	out.FinishedAt = utils.UTCNow()

	if err != nil {
		return out, err
	}
	return out, verr
}

func (f *ReconciliationFlowImpl) TagDriftReport(ctx context.Context, onlyDrifted bool) (*dto.TagDriftReport, error) {
	report := &dto.TagDriftReport{GeneratedAt: utils.UTCNow(), Items: []dto.TagDriftItem{}}

	var pageErr error
	err := f.pages(ctx, nil, f.tagRepo.ListIDsAfter, func(batch []uint) {
		if pageErr != nil {
			return
		}
		tags, err := f.tagRepo.ListByIDs(ctx, batch)
		if err != nil {
			pageErr = err
			return
		}
		counts, err := f.linkRepo.CountByTagIDs(ctx, batch)
		if err != nil {
			pageErr = err
			return
		}
		for _, t := range tags {
			report.TagsScanned++
			actual := counts[t.ID]
			drift := t.UsageCount - actual
			if drift != 0 {
				report.DriftedCount++
			} else if onlyDrifted {
				continue
			}
			report.Items = append(report.Items, dto.TagDriftItem{
				TagID:  t.ID,
				Name:   t.Name,
				Stored: t.UsageCount,
				Actual: actual,
				Drift:  drift,
			})
		}
	})
	if err == nil {
		err = pageErr
	}
	if err != nil {
		return nil, NewBusinessError("DRIFT_REPORT_FAILED", "failed to build tag drift report", err)
	}
	return report, nil
}

func (f *ReconciliationFlowImpl) DownloadTagDriftExcel(ctx context.Context, onlyDrifted bool) (string, []byte, error) {
	report, err := f.TagDriftReport(ctx, onlyDrifted)
	if err != nil {
		return "", nil, err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := "tag_drift"
	xl.SetSheetName(xl.GetSheetName(0), sheet)

	header := []string{"tag_id", "name", "stored_usage_count", "actual_links", "drift"}
	_ = xl.SetSheetRow(sheet, "A1", &header)
	for i, item := range report.Items {
		record := []any{item.TagID, item.Name, item.Stored, item.Actual, item.Drift}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	summary := "summary"
	_, _ = xl.NewSheet(summary)
	rows := [][]any{
		{"generated_at", report.GeneratedAt.Format(time.RFC3339)},
		{"tags_scanned", report.TagsScanned},
		{"drifted", report.DriftedCount},
	}
	for i, row := range rows {
		cellRef, _ := excelize.CoordinatesToCellName(1, i+1)
		_ = xl.SetSheetRow(summary, cellRef, &row)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := "tag_drift_" + strconv.FormatInt(report.GeneratedAt.Unix(), 10) + ".xlsx"
	return filename, buf.Bytes(), nil
}

func newReconcileResponse() *dto.ReconcileResponse {
	return &dto.ReconcileResponse{
		Results: []dto.CounterReconcileResult{},
		Errors:  []dto.ItemError{},
	}
}

func recordReconciled(res *dto.ReconcileResponse, id uint, counter string, before, after int64) {
	res.UpdatedCount++
	reconciledRowsTotal.WithLabelValues(counter).Inc()
	if before != after {
		res.ChangedCount++
		reconciledDriftTotal.WithLabelValues(counter).Inc()
	}
	res.Results = append(res.Results, dto.CounterReconcileResult{ID: id, Counter: counter, Before: before, After: after})
}
