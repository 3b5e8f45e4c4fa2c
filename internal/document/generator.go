package document

import (
	"bytes"
	"context"
	"fmt"

	"github.com/eventmarket/api/internal/storage"
)

type PDFPrinter interface {
	PrintPDF(ctx context.Context, html string) ([]byte, error)
}

// Generator renders a proposal, prints it and stores the PDF.
type Generator struct {
	printer PDFPrinter
	store   storage.Storage
}

func NewGenerator(printer PDFPrinter, store storage.Storage) *Generator {
	return &Generator{printer: printer, store: store}
}

// Generate returns the public URL of the stored PDF.
func (g *Generator) Generate(ctx context.Context, data ProposalData) (string, error) {
	html, err := RenderProposal(data)
	if err != nil {
		return "", err
	}

	pdf, err := g.printer.PrintPDF(ctx, html)
	if err != nil {
		return "", err
	}

	res, err := g.store.Put(ctx, bytes.NewReader(pdf), storage.PutInput{
		Filename:    data.InvoiceNumber + ".pdf",
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", fmt.Errorf("store proposal pdf: %w", err)
	}
	return res.URL, nil
}
