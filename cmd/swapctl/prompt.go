package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
	"github.com/hoale58-vl/sol-simple-swap/pkg/wallet"
)

// promptApprover asks for approval of every transaction on out and reads a
// y/N answer from in.
func promptApprover(in io.Reader, out io.Writer) wallet.Approver {
	reader := bufio.NewReader(in)

	return func(ctx context.Context, txn *solana.Transaction) (bool, error) {
		fmt.Fprintf(out, "Fee payer: %s\n", base58.Encode(txn.Payer()))
		for i, ci := range txn.Message.Instructions {
			fmt.Fprintf(out, "  #%d %s (%d accounts, %d data bytes)\n",
				i,
				base58.Encode(txn.Message.Accounts[ci.ProgramIndex]),
				len(ci.Accounts),
				len(ci.Data),
			)
		}
		fmt.Fprint(out, "Approve transaction? [y/N]: ")

		answer, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, errors.Wrap(err, "failed to read answer")
		}

		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	}
}
