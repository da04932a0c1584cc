// Command growthbook-fetch exercises RefreshFeatures against a real
// GrowthBook-compatible endpoint and prints the resulting payload.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ate-darren/growthbook"
)

// demoInstance is the minimal Instance implementation this binary needs: it
// has no evaluation engine, just enough state to receive and print a
// payload.
type demoInstance struct {
	apiHost      string
	clientKey    string
	userID       string
	remoteEval   bool
	streamingURL string
	features     json.RawMessage
	experiments  json.RawMessage
}

func (d *demoInstance) GetAPIInfo() (string, string) { return d.apiHost, d.clientKey }

func (d *demoInstance) GetAPIHosts() growthbook.APIHosts {
	return growthbook.APIHosts{
		APIHost:        d.apiHost,
		FeaturesPath:   "/api/features",
		RemoteEvalHost: d.apiHost,
		RemoteEvalPath: "/api/eval",
		StreamingHost:  d.apiHost,
		StreamingPath:  "/sub",
	}
}

func (d *demoInstance) GetClientKey() string                   { return d.clientKey }
func (d *demoInstance) IsRemoteEval() bool                      { return d.remoteEval }
func (d *demoInstance) GetUserID() string                       { return d.userID }
func (d *demoInstance) GetAttributes() map[string]interface{}   { return map[string]interface{}{} }
func (d *demoInstance) GetDecryptionKey() string                { return "" }
func (d *demoInstance) SetFeatures(f json.RawMessage)           { d.features = f }
func (d *demoInstance) GetFeatures() json.RawMessage            { return d.features }
func (d *demoInstance) SetExperiments(e json.RawMessage)        { d.experiments = e }
func (d *demoInstance) GetExperiments() json.RawMessage         { return d.experiments }
func (d *demoInstance) Log(msg string, ctx map[string]interface{}) {
	fmt.Fprintf(os.Stderr, "[growthbook] %s %v\n", msg, ctx)
}

func (d *demoInstance) SetEncryptedFeatures(cipherText, key string, decrypter growthbook.Decrypter) error {
	plain, err := decrypter.Decrypt(cipherText, key)
	if err != nil {
		return err
	}
	d.features = json.RawMessage(plain)
	return nil
}

func (d *demoInstance) SetEncryptedExperiments(cipherText, key string, decrypter growthbook.Decrypter) error {
	plain, err := decrypter.Decrypt(cipherText, key)
	if err != nil {
		return err
	}
	d.experiments = json.RawMessage(plain)
	return nil
}

func main() {
	app := &cli.App{
		Name:  "growthbook-fetch",
		Usage: "fetch and print a GrowthBook feature payload once",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api-host", Value: "https://cdn.growthbook.io", Usage: "GrowthBook API host"},
			&cli.StringFlag{Name: "client-key", Required: true, Usage: "SDK client key"},
			&cli.BoolFlag{Name: "background-sync", Value: true, Usage: "allow the repository to open a streaming channel"},
			&cli.DurationFlag{Name: "timeout", Value: 5 * time.Second, Usage: "network timeout for the fetch"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	instance := &demoInstance{
		apiHost:   c.String("api-host"),
		clientKey: c.String("client-key"),
	}

	if !c.Bool("background-sync") {
		disabled := false
		growthbook.ConfigureCache(growthbook.CacheSettingsOptions{BackgroundSync: &disabled})
	}

	timeout := c.Duration("timeout")
	payload, err := growthbook.RefreshFeatures(context.Background(), instance, growthbook.RefreshOptions{
		Timeout:        &timeout,
		UpdateInstance: true,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
