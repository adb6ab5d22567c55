package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blockberries/govledger/address"
	"github.com/blockberries/govledger/ledger"
)

func newAddressCmd() *cobra.Command {
	var program string
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Derive ledger record addresses",
	}
	cmd.PersistentFlags().StringVar(&program, "program", ledger.DefaultProgramID.String(), "base58 program id")

	prog := func() (*ledger.Program, error) {
		id, err := address.FromBase58(program)
		if err != nil {
			return nil, err
		}
		return ledger.New(id), nil
	}
	emit := func(cmd *cobra.Command, addr address.Address, bump uint8) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", addr, bump)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "proposal DAO TITLE",
			Short: "Derive a proposal address",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := prog()
				if err != nil {
					return err
				}
				dao, err := address.FromBase58(args[0])
				if err != nil {
					return err
				}
				addr, bump, err := p.ProposalAddress(dao, args[1])
				if err != nil {
					return err
				}
				emit(cmd, addr, bump)
				return nil
			},
		},
		pairCmd("voter PROPOSAL USER", "Derive a voter receipt address", prog, emit,
			func(p *ledger.Program, a, b address.Address) (address.Address, uint8, error) {
				return p.VoterAddress(a, b)
			}),
		pairCmd("reward DAO USER", "Derive a reward account address", prog, emit,
			func(p *ledger.Program, a, b address.Address) (address.Address, uint8, error) {
				return p.RewardAddress(a, b)
			}),
	)
	return cmd
}

// pairCmd builds a subcommand deriving an address from two base58 keys.
func pairCmd(
	use, short string,
	prog func() (*ledger.Program, error),
	emit func(*cobra.Command, address.Address, uint8),
	derive func(*ledger.Program, address.Address, address.Address) (address.Address, uint8, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := prog()
			if err != nil {
				return err
			}
			var keys [2]address.Address
			for i, arg := range args {
				if keys[i], err = address.FromBase58(arg); err != nil {
					return err
				}
			}
			addr, bump, err := derive(p, keys[0], keys[1])
			if err != nil {
				return err
			}
			emit(cmd, addr, bump)
			return nil
		},
	}
}
