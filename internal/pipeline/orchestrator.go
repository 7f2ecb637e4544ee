// Package pipeline drives measurements through the processing stages:
// convert, upload, download. Progress is checkpointed after every state
// change so an interrupted run can resume without redoing finished work.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/RaduCristea123/OBIWAN/internal/convert"
	"github.com/RaduCristea123/OBIWAN/internal/datalog"
	"github.com/RaduCristea123/OBIWAN/internal/lidar"
	"github.com/RaduCristea123/OBIWAN/internal/scc"
	"github.com/RaduCristea123/OBIWAN/pkg/checkpoint"
)

// Options holds the per-run flags and paths the orchestrator needs.
type Options struct {
	ConvertOnly bool
	Reprocess   bool
	Replace     bool
	Download    bool
	Continuous  bool

	// MaxUploadRetries is the number of retries after a failed first
	// upload attempt.
	MaxUploadRetries int

	StationCode  string
	NetCDFOutDir string
	DataFolder   string
	DebugDir     string
}

// UploadError means all upload attempts for a measurement were exhausted.
type UploadError struct {
	MeasurementID string
	Attempts      int
	Err           error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("uploading %s failed after %d attempts: %v", e.MeasurementID, e.Attempts, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// SystemResolver ties a raw data file to a registered system configuration.
type SystemResolver interface {
	SystemID(record lidar.FileRecord) (string, error)
}

// Orchestrator runs the pipeline stages for one set of measurements.
type Orchestrator struct {
	opts       Options
	resolver   SystemResolver
	serializer convert.Serializer
	client     scc.Client
	store      *checkpoint.Store

	processStart string
	rows         map[string]*datalog.Row
	rowOrder     []string
}

// New builds an orchestrator. The checkpoint store must already carry the
// run's configuration.
func New(opts Options, resolver SystemResolver, serializer convert.Serializer, client scc.Client, store *checkpoint.Store) *Orchestrator {
	return &Orchestrator{
		opts:         opts,
		resolver:     resolver,
		serializer:   serializer,
		client:       client,
		store:        store,
		processStart: time.Now().Format("2006-01-02 15:04"),
		rows:         make(map[string]*datalog.Row),
	}
}

// Rows returns the report rows accumulated so far, in processing order.
func (o *Orchestrator) Rows() []datalog.Row {
	out := make([]datalog.Row, 0, len(o.rowOrder))
	for _, id := range o.rowOrder {
		out = append(out, *o.rows[id])
	}
	return out
}

// Run advances every measurement as far as the run flags allow. Stage
// failures are isolated: the item is recorded as failed and the run moves
// on. Only a cancelled context stops the run early.
func (o *Orchestrator) Run(ctx context.Context, measurements []lidar.Measurement) error {
	// Make sure every measurement has a record before work starts, so a
	// crash during the first item still leaves a complete ordinal map.
	for i := range measurements {
		o.store.Record(i)
	}
	if err := o.store.Save(); err != nil {
		return err
	}

	var toDownload []int

	for i, m := range measurements {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec := o.store.Record(i)

		if !rec.Converted {
			if err := o.convert(ctx, i, m); err != nil {
				o.fail(i, err)
				continue
			}
		}

		if o.opts.ConvertOnly {
			continue
		}

		rec = o.store.Record(i)
		o.ensureRow(rec)

		if !rec.Uploaded {
			if err := o.upload(ctx, i, m); err != nil {
				o.fail(i, err)
				continue
			}
		}

		if o.opts.Download && o.store.Record(i).Uploaded && !o.store.Record(i).Downloaded {
			toDownload = append(toDownload, i)
		}
	}

	if o.opts.Download {
		log.Printf("Downloading SCC products")
		for _, i := range toDownload {
			if err := ctx.Err(); err != nil {
				return err
			}
			o.download(ctx, i)
		}
	}

	return nil
}

func (o *Orchestrator) convert(ctx context.Context, ordinal int, m lidar.Measurement) error {
	if len(m.DataFiles) == 0 {
		return fmt.Errorf("measurement %d has no data files", ordinal)
	}

	log.Printf("Converting %d raw files to SCC NetCDF format.", len(m.DataFiles))

	systemID, err := o.resolver.SystemID(m.DataFiles[0])
	if err != nil {
		return err
	}
	if err := o.store.Update(ordinal, func(r *checkpoint.Record) {
		r.SystemID = systemID
	}); err != nil {
		return err
	}

	measurementID := convert.MeasurementID(m, o.opts.StationCode)
	if err := o.store.Update(ordinal, func(r *checkpoint.Record) {
		r.MeasurementID = measurementID
	}); err != nil {
		return err
	}

	o.startRow(measurementID, systemID)

	path, err := o.serializer.Serialize(ctx, m, measurementID, o.opts.NetCDFOutDir)
	if err != nil {
		return &convert.ConversionError{MeasurementID: measurementID, Err: err}
	}

	if err := o.store.Update(ordinal, func(r *checkpoint.Record) {
		r.Converted = true
		r.NetCDFPath = path
	}); err != nil {
		return err
	}

	if row := o.rows[measurementID]; row != nil {
		row.DataFile = absPath(path)
	}

	if o.opts.DebugDir != "" {
		if err := DebugMeasurement(m, path, o.opts.DebugDir); err != nil {
			log.Printf("[%s] Could not copy debug files: %v", measurementID, err)
		}
	}

	log.Printf("[%s] Converted to %s", measurementID, path)
	return nil
}

func (o *Orchestrator) upload(ctx context.Context, ordinal int, m lidar.Measurement) error {
	rec := o.store.Record(ordinal)
	measurementID := rec.MeasurementID

	exists, err := o.client.Exists(ctx, measurementID)
	if err != nil {
		return &scc.RemoteError{MeasurementID: measurementID, Err: err}
	}
	if err := o.store.Update(ordinal, func(r *checkpoint.Record) {
		r.AlreadyOnSCC = exists
	}); err != nil {
		return err
	}

	if exists && o.opts.Reprocess {
		log.Printf("[%s] Measurement already exists in the SCC, triggering reprocessing.", measurementID)
		if err := o.client.Rerun(ctx, measurementID); err != nil {
			return &scc.RemoteError{MeasurementID: measurementID, Err: err}
		}
		return o.markUploaded(ordinal, m)
	}

	if exists && !o.opts.Replace {
		log.Printf("[%s] Measurement already exists in the SCC, skipping reupload.", measurementID)
		return o.markUploaded(ordinal, m)
	}

	attempts := 0
	var lastErr error
	for attempts <= o.opts.MaxUploadRetries {
		if attempts > 0 {
			log.Printf("[%s] Upload to SCC failed. Retrying (%d/%d).",
				measurementID, attempts, o.opts.MaxUploadRetries)
		}
		attempts++

		lastErr = o.client.Upload(ctx, rec.NetCDFPath, rec.SystemID, o.opts.Replace)
		if lastErr == nil {
			log.Printf("[%s] Successfully uploaded to SCC", measurementID)
			return o.markUploaded(ordinal, m)
		}
		if ctx.Err() != nil {
			break
		}
	}

	return &UploadError{MeasurementID: measurementID, Attempts: attempts, Err: lastErr}
}

// markUploaded records the upload and, on continuous runs, advances the
// watermark to the measurement's end.
func (o *Orchestrator) markUploaded(ordinal int, m lidar.Measurement) error {
	if err := o.store.Update(ordinal, func(r *checkpoint.Record) {
		r.Uploaded = true
	}); err != nil {
		return err
	}

	if row := o.rows[o.store.Record(ordinal).MeasurementID]; row != nil {
		row.Uploaded = true
	}

	if o.opts.Continuous {
		return o.store.AdvanceWatermark(m.End())
	}
	return nil
}

func (o *Orchestrator) download(ctx context.Context, ordinal int) {
	rec := o.store.Record(ordinal)
	measurementID := rec.MeasurementID
	o.ensureRow(rec)

	log.Printf("[%s] Waiting for processing to finish and downloading files...", measurementID)

	result, err := o.client.MonitorProcessing(ctx, measurementID)
	if err != nil {
		o.failDownload(ordinal, "Error downloading SCC products", err)
		return
	}
	if !result.Succeeded() {
		o.failDownload(ordinal, "No SCC products found",
			fmt.Errorf("processing finished with elpp=%d, elda=%d", result.ELPP, result.ELDA))
		return
	}

	version, err := o.client.ProductVersion(ctx, measurementID)
	if err != nil {
		o.failDownload(ordinal, "Unknown error in SCC products", err)
		return
	}

	if err := o.store.Update(ordinal, func(r *checkpoint.Record) {
		r.Downloaded = true
		r.Result = ""
	}); err != nil {
		log.Printf("[%s] Could not checkpoint download: %v", measurementID, err)
	}

	log.Printf("[%s] %s", measurementID, version)

	if row := o.rows[measurementID]; row != nil {
		row.Downloaded = true
		row.SCCVersion = version
		row.Result = absPath(o.client.OutputDir())
	}
}

// fail records a per-item error. The run keeps going; only the item stops.
func (o *Orchestrator) fail(ordinal int, err error) {
	rec := o.store.Record(ordinal)
	scope := rec.MeasurementID
	if scope == "" {
		scope = fmt.Sprintf("measurement %d", ordinal)
	}

	log.Printf("[%s] Error processing measurement: %v. Skipping.", scope, err)

	if uerr := o.store.Update(ordinal, func(r *checkpoint.Record) {
		r.Result = err.Error()
	}); uerr != nil {
		log.Printf("[%s] Could not checkpoint failure: %v", scope, uerr)
	}

	if row := o.rows[rec.MeasurementID]; row != nil {
		row.Result = err.Error()
	}
}

func (o *Orchestrator) failDownload(ordinal int, result string, err error) {
	rec := o.store.Record(ordinal)
	log.Printf("[%s] %s: %v", rec.MeasurementID, result, err)

	if uerr := o.store.Update(ordinal, func(r *checkpoint.Record) {
		r.Result = result
	}); uerr != nil {
		log.Printf("[%s] Could not checkpoint failure: %v", rec.MeasurementID, uerr)
	}

	if row := o.rows[rec.MeasurementID]; row != nil {
		row.Result = result
	}
}

func (o *Orchestrator) startRow(measurementID, systemID string) {
	if _, ok := o.rows[measurementID]; ok {
		return
	}
	o.rows[measurementID] = &datalog.Row{
		ProcessStart:  o.processStart,
		DataFolder:    absPath(o.opts.DataFolder),
		SystemID:      systemID,
		MeasurementID: measurementID,
	}
	o.rowOrder = append(o.rowOrder, measurementID)
}

// ensureRow creates a report row for items resumed past the convert stage.
func (o *Orchestrator) ensureRow(rec *checkpoint.Record) {
	if rec.MeasurementID == "" {
		return
	}
	if _, ok := o.rows[rec.MeasurementID]; ok {
		return
	}
	o.startRow(rec.MeasurementID, rec.SystemID)
	o.rows[rec.MeasurementID].DataFile = rec.NetCDFPath
}

func absPath(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
