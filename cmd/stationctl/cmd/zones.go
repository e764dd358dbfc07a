package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/ironfathom/stationctl/internal/config"
	"github.com/ironfathom/stationctl/internal/logger"
	"github.com/ironfathom/stationctl/internal/state"
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Inspect and edit the station's no-fire, no-traverse, and TRP zone file",
}

func init() {
	zonesCmd.AddCommand(zonesListCmd)
	zonesCmd.AddCommand(zonesAddCmd)
	zonesCmd.AddCommand(zonesExportCmd)
	zonesCmd.AddCommand(zonesImportCmd)
}

// loadZoneModel opens the configured zone file against a bare model with no
// hardware attached, for offline inspection and editing.
func loadZoneModel() (*state.Model, *config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading station config: %w", err)
	}
	log := logger.New()
	bus := state.NewBus()
	model := state.NewModel(bus, log)
	model.LoadZonesFromFile(cfg.ZoneFilePath)
	return model, cfg, nil
}

var zonesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the area zones, sector-scan zones, and TRPs in the zone file",
	RunE:  runZonesList,
}

func runZonesList(cmd *cobra.Command, _ []string) error {
	model, _, err := loadZoneModel()
	if err != nil {
		return err
	}
	snap := model.Snapshot()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "AREA ZONES")
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tENABLED\tAZ START\tAZ END\tEL MIN\tEL MAX\tNAME")
	for _, z := range snap.AreaZones {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%t\t%.1f\t%.1f\t%.1f\t%.1f\t%s\n",
			z.ID, z.Type.String(), z.IsEnabled, z.StartAzDeg, z.EndAzDeg, z.MinElDeg, z.MaxElDeg, z.Name)
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "SECTOR SCAN ZONES")
	_, _ = fmt.Fprintln(w, "ID\tENABLED\tAZ1\tEL1\tAZ2\tEL2\tSPEED DPS\tNAME")
	for _, z := range snap.SectorScanZones {
		_, _ = fmt.Fprintf(w, "%d\t%t\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\t%s\n",
			z.ID, z.IsEnabled, z.Az1Deg, z.El1Deg, z.Az2Deg, z.El2Deg, z.ScanSpeedDps, z.Name)
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "TARGET REFERENCE POINTS")
	_, _ = fmt.Fprintln(w, "ID\tPAGE\tSLOT\tAZ\tEL\tNAME")
	for _, t := range snap.TRPs {
		_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%.1f\t%.1f\t%s\n",
			t.ID, t.LocationPage, t.TRPInPage, t.AzDeg, t.ElDeg, t.Name)
	}
	return w.Flush()
}

var zonesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Interactively add a zone or target reference point",
	RunE:  runZonesAdd,
}

func runZonesAdd(cmd *cobra.Command, _ []string) error {
	model, cfg, err := loadZoneModel()
	if err != nil {
		return err
	}

	var kind string
	if err := survey.AskOne(&survey.Select{
		Message: "What do you want to add?",
		Options: []string{"No-fire area zone", "No-traverse area zone", "Sector scan zone", "Target reference point"},
	}, &kind); err != nil {
		return err
	}

	switch kind {
	case "No-fire area zone":
		err = addAreaZoneWizard(model, state.ZoneNoFire)
	case "No-traverse area zone":
		err = addAreaZoneWizard(model, state.ZoneNoTraverse)
	case "Sector scan zone":
		err = addSectorZoneWizard(model)
	case "Target reference point":
		err = addTRPWizard(model)
	}
	if err != nil {
		return err
	}

	if !model.SaveZonesToFile(cfg.ZoneFilePath) {
		return fmt.Errorf("failed to save zone file %q", cfg.ZoneFilePath)
	}
	fmt.Println("saved", cfg.ZoneFilePath)
	return nil
}

func addAreaZoneWizard(model *state.Model, zt state.AreaZoneType) error {
	name, err := askString("Zone name", "")
	if err != nil {
		return err
	}
	startAz, err := askFloat("Start azimuth (deg)", "0")
	if err != nil {
		return err
	}
	endAz, err := askFloat("End azimuth (deg)", "90")
	if err != nil {
		return err
	}
	minEl, err := askFloat("Minimum elevation (deg)", "-10")
	if err != nil {
		return err
	}
	maxEl, err := askFloat("Maximum elevation (deg)", "60")
	if err != nil {
		return err
	}

	_, id := model.AddAreaZone(state.AreaZone{
		Type:       zt,
		IsEnabled:  true,
		StartAzDeg: startAz,
		EndAzDeg:   endAz,
		MinElDeg:   minEl,
		MaxElDeg:   maxEl,
		Name:       name,
	})
	fmt.Printf("added area zone #%d\n", id)
	return nil
}

func addSectorZoneWizard(model *state.Model) error {
	name, err := askString("Sector name", "")
	if err != nil {
		return err
	}
	az1, err := askFloat("Corner 1 azimuth (deg)", "0")
	if err != nil {
		return err
	}
	el1, err := askFloat("Corner 1 elevation (deg)", "0")
	if err != nil {
		return err
	}
	az2, err := askFloat("Corner 2 azimuth (deg)", "30")
	if err != nil {
		return err
	}
	el2, err := askFloat("Corner 2 elevation (deg)", "0")
	if err != nil {
		return err
	}
	speed, err := askFloat("Scan speed (deg/s)", "5")
	if err != nil {
		return err
	}

	_, id := model.AddSectorScanZone(state.SectorScanZone{
		IsEnabled:    true,
		Az1Deg:       az1,
		El1Deg:       el1,
		Az2Deg:       az2,
		El2Deg:       el2,
		ScanSpeedDps: speed,
		Name:         name,
	})
	fmt.Printf("added sector scan zone #%d\n", id)
	return nil
}

func addTRPWizard(model *state.Model) error {
	name, err := askString("TRP name", "")
	if err != nil {
		return err
	}
	page, err := askInt("Location page", "1")
	if err != nil {
		return err
	}
	slot, err := askInt("Slot within page", "1")
	if err != nil {
		return err
	}
	az, err := askFloat("Azimuth (deg)", "0")
	if err != nil {
		return err
	}
	el, err := askFloat("Elevation (deg)", "0")
	if err != nil {
		return err
	}

	_, id := model.AddTRP(state.TargetReferencePoint{
		LocationPage: page,
		TRPInPage:    slot,
		AzDeg:        az,
		ElDeg:        el,
		Name:         name,
	})
	fmt.Printf("added TRP #%d\n", id)
	return nil
}

func askString(message, def string) (string, error) {
	var result string
	err := survey.AskOne(&survey.Input{Message: message, Default: def}, &result, survey.WithValidator(survey.Required))
	return result, err
}

func askFloat(message, def string) (float64, error) {
	var result string
	if err := survey.AskOne(&survey.Input{Message: message, Default: def}, &result, survey.WithValidator(survey.Required)); err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(result, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", result, err)
	}
	return v, nil
}

func askInt(message, def string) (int, error) {
	var result string
	if err := survey.AskOne(&survey.Input{Message: message, Default: def}, &result, survey.WithValidator(survey.Required)); err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(result)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", result, err)
	}
	return v, nil
}

var zonesExportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Copy the current zone file to a new path",
	Args:  cobra.ExactArgs(1),
	RunE:  runZonesExport,
}

func runZonesExport(cmd *cobra.Command, args []string) error {
	model, _, err := loadZoneModel()
	if err != nil {
		return err
	}
	if !model.SaveZonesToFile(args[0]) {
		return fmt.Errorf("failed to export zone file to %q", args[0])
	}
	fmt.Println("exported to", args[0])
	return nil
}

var zonesImportCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Replace the configured zone file with the contents of another zone file",
	Args:  cobra.ExactArgs(1),
	RunE:  runZonesImport,
}

func runZonesImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading station config: %w", err)
	}
	log := logger.New()
	bus := state.NewBus()
	model := state.NewModel(bus, log)
	if !model.LoadZonesFromFile(args[0]) {
		return fmt.Errorf("failed to load zone file %q", args[0])
	}
	if !model.SaveZonesToFile(cfg.ZoneFilePath) {
		return fmt.Errorf("failed to write zone file %q", cfg.ZoneFilePath)
	}
	fmt.Println("imported", args[0], "into", cfg.ZoneFilePath)
	return nil
}
