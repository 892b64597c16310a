// Package archive snapshots proposal and reputation records on demand into
// columnar files for cold-storage retention, grounded on the
// otc-gateway reconciler's parquet export path (SPEC_FULL.md §4).
package archive

import (
	"fmt"
	"os"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"treasuryvault/native/treasury"
)

// proposalRow is the flattened, parquet-friendly projection of a Proposal.
type proposalRow struct {
	ID              int64  `parquet:"name=id, type=INT64"`
	Proposer        string `parquet:"name=proposer, type=BYTE_ARRAY, convertedtype=UTF8"`
	Recipient       string `parquet:"name=recipient, type=BYTE_ARRAY, convertedtype=UTF8"`
	Token           string `parquet:"name=token, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount          string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status          string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	Priority        string `parquet:"name=priority, type=BYTE_ARRAY, convertedtype=UTF8"`
	ApproverCount   int32  `parquet:"name=approver_count, type=INT32"`
	CreatedLedger   int64  `parquet:"name=created_ledger, type=INT64"`
	InsuranceAmount string `parquet:"name=insurance_amount, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportProposals writes one row per proposal to a snappy-compressed
// parquet file at path, for periodic archival of the ledger's proposal
// history outside the hot persistent store.
func ExportProposals(path string, proposals []*treasury.Proposal) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("archive: create parquet file: %w", err)
	}
	defer file.Close()

	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(proposalRow), 4)
	if err != nil {
		return fmt.Errorf("archive: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, p := range proposals {
		row := &proposalRow{
			ID:            int64(p.ID),
			Proposer:      p.Proposer.String(),
			Recipient:     p.Recipient.String(),
			Token:         p.Token,
			Status:        p.Status.String(),
			Priority:      p.Priority.String(),
			ApproverCount: int32(len(p.Approvers)),
			CreatedLedger: int64(p.CreatedLedger),
		}
		if p.Amount != nil {
			row.Amount = p.Amount.String()
		}
		if p.InsuranceAmount != nil {
			row.InsuranceAmount = p.InsuranceAmount.String()
		}
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("archive: write row %d: %w", p.ID, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("archive: finalize parquet: %w", err)
	}
	return nil
}

// reputationRow is the flattened projection of a Reputation record.
type reputationRow struct {
	Address           string `parquet:"name=address, type=BYTE_ARRAY, convertedtype=UTF8"`
	Score             int64  `parquet:"name=score, type=INT64"`
	ProposalsCreated  int64  `parquet:"name=proposals_created, type=INT64"`
	ProposalsExecuted int64  `parquet:"name=proposals_executed, type=INT64"`
	ProposalsRejected int64  `parquet:"name=proposals_rejected, type=INT64"`
	ApprovalsGiven    int64  `parquet:"name=approvals_given, type=INT64"`
}

// ExportReputations snapshots the reputation ledger to a parquet file.
func ExportReputations(path string, records []*treasury.Reputation) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("archive: create parquet file: %w", err)
	}
	defer file.Close()

	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(reputationRow), 4)
	if err != nil {
		return fmt.Errorf("archive: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range records {
		row := &reputationRow{
			Address:           r.Address.String(),
			Score:             r.Score,
			ProposalsCreated:  int64(r.ProposalsCreated),
			ProposalsExecuted: int64(r.ProposalsExecuted),
			ProposalsRejected: int64(r.ProposalsRejected),
			ApprovalsGiven:    int64(r.ApprovalsGiven),
		}
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("archive: write row for %s: %w", r.Address.String(), err)
		}
	}
	return pw.WriteStop()
}
