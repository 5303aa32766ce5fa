package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ALT-F4-LLC/issuesnap/internal/model"
)

// rowSchema is used when the destination table does not exist yet.
var rowSchema = bigquery.Schema{
	{Name: "issue_id", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "issue_title", Type: bigquery.StringFieldType, Required: true},
	{Name: "created_time", Type: bigquery.DateTimeFieldType},
	{Name: "updated_time", Type: bigquery.DateTimeFieldType},
	{Name: "labels", Type: bigquery.StringFieldType, Repeated: true},
	{Name: "assignees", Type: bigquery.StringFieldType, Repeated: true},
	{Name: "state", Type: bigquery.StringFieldType, Required: true},
	{Name: "state_reason", Type: bigquery.StringFieldType},
	{Name: "closed_time", Type: bigquery.DateTimeFieldType},
	{Name: "projects", Type: bigquery.StringFieldType, Repeated: true},
	{Name: "issue_url", Type: bigquery.StringFieldType},
}

// BigQueryLoader loads rows into a BigQuery table with a single load job.
type BigQueryLoader struct {
	client *bigquery.Client
}

// NewBigQueryLoader creates a BigQuery client for project authenticated with
// the given service-account JSON. Extra options are appended after the
// credentials.
func NewBigQueryLoader(ctx context.Context, project string, credentials []byte, opts ...option.ClientOption) (*BigQueryLoader, error) {
	opts = append([]option.ClientOption{option.WithCredentialsJSON(credentials)}, opts...)
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	return &BigQueryLoader{client: client}, nil
}

func (l *BigQueryLoader) Name() string { return "bigquery" }

// Close releases the underlying client.
func (l *BigQueryLoader) Close() error {
	return l.client.Close()
}

// Load streams rows as newline-delimited JSON into one load job and waits for
// it to finish. The existing table schema is reused so column modes set by
// the table owner are preserved.
func (l *BigQueryLoader) Load(ctx context.Context, ref TableRef, rows []model.Row, disp Disposition) (*model.LoadRun, error) {
	if ref.Dataset == "" {
		return nil, fmt.Errorf("bigquery table %q: dataset is required", ref)
	}
	project := ref.Project
	if project == "" {
		project = l.client.Project()
	}
	table := l.client.DatasetInProject(project, ref.Dataset).Table(ref.Table)

	schema, err := destinationSchema(ctx, table, disp)
	if err != nil {
		return nil, err
	}

	body, err := encodeNDJSON(rows)
	if err != nil {
		return nil, err
	}

	src := bigquery.NewReaderSource(body)
	src.SourceFormat = bigquery.JSON
	src.Schema = schema
	src.IgnoreUnknownValues = true

	loader := table.LoaderFrom(src)
	loader.CreateDisposition = bigquery.CreateIfNeeded
	if disp.Create == CreateNever {
		loader.CreateDisposition = bigquery.CreateNever
	}
	loader.WriteDisposition = bigquery.WriteTruncate
	if disp.Write == WriteEmpty {
		loader.WriteDisposition = bigquery.WriteEmpty
	}

	job, err := loader.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting load job for %s: %w", ref, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("waiting for load job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("load job %s: %w", job.ID(), err)
	}

	return &model.LoadRun{
		ID:       job.ID(),
		Table:    ref.String(),
		Rows:     len(rows),
		LoadedAt: time.Now().UTC().Truncate(time.Second),
	}, nil
}

// destinationSchema returns the schema of the existing table, or rowSchema
// when the table is missing and may be created.
func destinationSchema(ctx context.Context, table *bigquery.Table, disp Disposition) (bigquery.Schema, error) {
	md, err := table.Metadata(ctx)
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			if disp.Create == CreateNever {
				return nil, fmt.Errorf("%w: %s", ErrTableMissing, table.FullyQualifiedName())
			}
			return rowSchema, nil
		}
		return nil, fmt.Errorf("reading schema of %s: %w", table.FullyQualifiedName(), err)
	}
	if err := checkSchema(md.Schema); err != nil {
		return nil, fmt.Errorf("%s: %w", table.FullyQualifiedName(), err)
	}
	return md.Schema, nil
}

// checkSchema reports ErrSchemaMismatch when schema lacks a core column.
func checkSchema(schema bigquery.Schema) error {
	present := make(map[string]bool, len(schema))
	for _, f := range schema {
		present[strings.ToLower(f.Name)] = true
	}
	var missing []string
	for _, c := range model.CoreColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing columns %s", ErrSchemaMismatch, strings.Join(missing, ", "))
	}
	return nil
}

func encodeNDJSON(rows []model.Row) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("encoding issue %s: %w", model.FormatNumber(r.IssueID), err)
		}
	}
	return &buf, nil
}
