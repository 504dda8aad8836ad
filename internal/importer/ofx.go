package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/hearthledger/hearthledger/internal/common"
	"github.com/hearthledger/hearthledger/internal/model"
)

// parseOFX reads an OFX/QFX batch. OFX parsing is all-or-nothing: a file
// ofxgo cannot parse is a batch-level failure.
func parseOFX(reader io.Reader, householdID string) ([]parsedRow, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnreadableFile, err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnreadableFile, err)
	}

	var rows []parsedRow
	rowNum := 0

	appendStatement := func(accountID string, list *ofxgo.TransactionList) {
		if list == nil {
			return
		}
		for _, ofxTx := range list.Transactions {
			rowNum++
			rows = append(rows, parsedRow{
				row: rowNum,
				txn: convertOFXTransaction(ofxTx, accountID, householdID),
			})
		}
	}

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			appendStatement(string(stmt.BankAcctFrom.AcctID), stmt.BankTranList)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			appendStatement(string(stmt.CCAcctFrom.AcctID), stmt.BankTranList)
		}
	}

	return rows, nil
}

// preprocessOFX fixes common formatting issues in OFX files before parsing.
func preprocessOFX(content string) string {
	return strings.TrimLeft(content, " \t\r\n")
}

// convertOFXTransaction maps an OFX transaction onto the engine model,
// keeping the signed amount: OFX already uses negative for debits.
func convertOFXTransaction(ofxTx ofxgo.Transaction, accountID, householdID string) *model.Transaction {
	amount, _ := ofxTx.TrnAmt.Float64()

	merchant := ""
	if ofxTx.Payee != nil && ofxTx.Payee.Name != "" {
		merchant = string(ofxTx.Payee.Name)
	}

	description := strings.TrimSpace(string(ofxTx.Name))
	if description == "" {
		description = strings.TrimSpace(string(ofxTx.Memo))
	}

	return &model.Transaction{
		HouseholdID:  householdID,
		AccountID:    accountID,
		Date:         ofxTx.DtPosted.Time,
		Amount:       amount,
		Description:  description,
		MerchantName: merchant,
	}
}
