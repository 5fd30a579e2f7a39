package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"perptrader/cmd/report"
	"perptrader/cmd/trader"
	"perptrader/src/utils"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "perptrader"
	app.Usage = "Perpetual futures trading bot"
	app.Version = Version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "env-file",
			Value: ".env",
			Usage: "optional KEY=VALUE file loaded before the environment is read",
		},
	}
	app.Before = func(c *cli.Context) error {
		if err := utils.LoadEnvFile(c.GlobalString("env-file")); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
		utils.SetupLogger()
		return nil
	}

	app.Commands = []cli.Command{
		tradeCMD,
		reportCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	tradeCMD = cli.Command{
		Name:        "trade",
		Usage:       "run the trading loop",
		Action:      tradeAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the trading loop in paper mode, with the status server unless STATUS_SERVER_ENABLED=false`,
	}
	reportCMD = cli.Command{
		Name:      "report",
		Usage:     "print daily performance and trades",
		Action:    reportAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "date", Usage: "trading day (YYYY-MM-DD), defaults to the current day"},
			cli.IntFlag{Name: "limit", Value: 20, Usage: "max trades to list"},
		},
		Description: `Print the daily stats table and the day's trades`,
	}
)

func tradeAction(_ *cli.Context) error {
	logrus.WithField("cmd", "trade").Info("Starting trade CMD")

	t := &trader.Trader{}
	if err := t.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func reportAction(c *cli.Context) error {
	r := &report.Report{
		Out:   os.Stdout,
		Date:  c.String("date"),
		Limit: c.Int("limit"),
	}
	if err := r.Start(); err != nil {
		logrus.WithError(err).Error("Report failed")
		return err
	}
	return nil
}
