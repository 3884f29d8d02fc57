// Package documentor generates personalized documents in batches and
// delivers them by email.
//
// # Quick Start
//
// Load a configuration, build the service, connect the job queue and
// submit a job:
//
//	cfg, err := documentor.LoadConfig("documentor")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := documentor.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close(context.Background())
//	_ = svc.Start(ctx) // jobs run inline when the queue is unavailable
//
//	id, err := svc.Submit(ctx, documentor.GenerationJob{
//	    TemplateID: "diploma",
//	    Rows:       []documentor.Row{{"name": "Jane Doe", "date": "2024-03-01"}},
//	})
//	status, err := svc.Status(ctx, id)
//
// # Templates
//
// A docx template carries {{variable}} placeholders, substituted per row
// after formatting (dates, numbers, text transforms). PDF and image
// templates place fields at fixed coordinates instead. Any template can
// carry QR codes whose content is a URL pattern, the row's storage URL,
// or a signed certificate payload verifiable with Service.Verify.
//
// # Jobs
//
// Rows of a job are processed in order. Each row gets its own document
// record, and a failing row is reported in JobResult.Errors without
// stopping the others. Errors that affect every row (missing template)
// fail the job and are retried by the queue with exponential backoff.
//
// # Conversion
//
// docx output can be converted to PDF. LibreOffice is used when it is
// installed; otherwise the document is rendered to HTML and printed with
// headless Chrome (go-rod). Set ROD_NO_SANDBOX=1 in containers and
// ROD_BROWSER_BIN to use a specific browser binary.
package documentor
