package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chrissnell/observerip/internal/observerip"
	"github.com/chrissnell/observerip/pkg/config"
)

var (
	wuID          string
	wuPassword    string
	dst           string
	timezone      string
	networkValues map[string]string
	calibValues   = map[string]*string{}
	compareFile   string
	compareDevice string
	stanzaName    string
)

// errNoCurrent stops a partial page from being written back.
var errNoCurrent = errors.New("can't read the current settings from the station")

// calibrationFlags maps each calibration key to its lower-case flag name.
var calibrationFlags = func() map[string]string {
	m := make(map[string]string, len(observerip.CalibrationBounds))
	for k := range observerip.CalibrationBounds {
		m[k] = strings.ToLower(k)
	}
	return m
}()

func init() {
	rootCmd.AddCommand(scanCmd, getDataCmd, getNetworkCmd, setNetworkCmd, getIDPasswordCmd, setPasswdCmd,
		getStationSettingsCmd, setStationSettingsCmd, getCalibrationCmd, setCalibrationCmd,
		setCalibrationDefaultsCmd, rebootCmd, defaultConfigCmd)

	setNetworkCmd.Flags().StringToStringVar(&networkValues, "set", nil, "Network setting to change, as key=value (repeatable)")

	setPasswdCmd.Flags().StringVar(&wuID, "wuid", "", "Weather Underground station ID")
	setPasswdCmd.Flags().StringVar(&wuPassword, "wupasswd", "", "Weather Underground password")

	setStationSettingsCmd.Flags().StringVar(&dst, "dst", "", "Daylight saving time setting")
	setStationSettingsCmd.Flags().StringVar(&timezone, "timezone", "", "Timezone setting")

	for key, flag := range calibrationFlags {
		calibValues[key] = setCalibrationCmd.Flags().String(flag, "", "Set "+key)
	}

	getCalibrationCmd.Flags().StringVar(&compareFile, "config", "", "YAML configuration to compare against (default: factory calibration)")
	getCalibrationCmd.Flags().StringVar(&compareDevice, "device", "", "Device in --config to compare against")

	defaultConfigCmd.Flags().StringVar(&stanzaName, "name", "observerip", "Device name for the stanza")
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Print the probe information of the base unit",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		info, err := c.Packet().Decode()
		if err != nil {
			return fmt.Errorf("can't decode probe reply: %w", err)
		}

		var hostname string
		if names, err := net.LookupAddr(info.IPAddr); err == nil && len(names) > 0 {
			hostname = strings.TrimSuffix(names[0], ".")
		}
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprint(cmd.OutOrStdout(), info.Summary(hostname))
		return nil
	},
}

var getDataCmd = &cobra.Command{
	Use:   "getdata",
	Short: "Print the live weather data from the station",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		printSettings(cmd.OutOrStdout(), c.LiveData(cmd.Context()))
		return nil
	},
}

var getNetworkCmd = &cobra.Command{
	Use:   "getnetwork",
	Short: "Print the network settings of the station",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		printSettings(cmd.OutOrStdout(), c.NetworkSettings(cmd.Context(), readable))
		return nil
	},
}

var setNetworkCmd = &cobra.Command{
	Use:     "setnetwork",
	Short:   "Change network settings of the station",
	Example: `  observerip-cfg setnetwork --host 192.168.1.50 --set dhcp=0 --set staticIP=192.168.1.60`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(networkValues) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to set")
			return nil
		}
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		settings := c.NetworkSettings(cmd.Context(), false)
		if len(settings) == 0 {
			return errNoCurrent
		}
		for k, v := range networkValues {
			settings[k] = v
		}
		if !confirm(os.Stdin, cmd.OutOrStdout(), "This will change the network settings of the ObserverIP") {
			return nil
		}
		return c.SetNetworkSettings(cmd.Context(), settings)
	},
}

var getIDPasswordCmd = &cobra.Command{
	Use:   "getidpassword",
	Short: "Print the Weather Underground ID and password stored on the station",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		printSettings(cmd.OutOrStdout(), c.Credentials(cmd.Context()))
		return nil
	},
}

var setPasswdCmd = &cobra.Command{
	Use:   "setpasswd",
	Short: "Set the Weather Underground ID and/or password on the station",
	RunE: func(cmd *cobra.Command, args []string) error {
		if wuID == "" && wuPassword == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to set")
			return nil
		}
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		if !confirm(os.Stdin, cmd.OutOrStdout(), "This will set the Weather Underground password on the ObserverIP") {
			return nil
		}
		return c.SetCredentials(cmd.Context(), wuID, wuPassword)
	},
}

var getStationSettingsCmd = &cobra.Command{
	Use:   "getstationsettings",
	Short: "Print the station and time settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		printSettings(cmd.OutOrStdout(), c.StationSettings(cmd.Context(), readable))
		return nil
	},
}

var setStationSettingsCmd = &cobra.Command{
	Use:   "setstationsettings",
	Short: "Change the daylight saving time and timezone settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		settings := c.StationSettings(cmd.Context(), false)
		if len(settings) == 0 {
			return errNoCurrent
		}
		if dst != "" {
			settings["dst"] = dst
		}
		if timezone != "" {
			settings["timezone"] = timezone
		}
		if !confirm(os.Stdin, cmd.OutOrStdout(), "This will change the station settings") {
			return nil
		}
		return c.SetStationSettings(cmd.Context(), settings)
	},
}

var getCalibrationCmd = &cobra.Command{
	Use:   "getcalibration",
	Short: "List the calibration constants, then the keys that differ from the configured values",
	RunE: func(cmd *cobra.Command, args []string) error {
		want, err := configuredCalibration()
		if err != nil {
			return err
		}
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		have := c.Calibration(cmd.Context())
		printSettings(cmd.OutOrStdout(), have)
		for _, k := range differingKeys(want, have) {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

var setCalibrationCmd = &cobra.Command{
	Use:     "setcalibration",
	Short:   "Set calibration constants on the station",
	Example: `  observerip-cfg setcalibration --raingain 1.05 --windgain 0.98`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		calib := c.Calibration(cmd.Context())
		if len(calib) == 0 {
			return errNoCurrent
		}
		for key, flag := range calibrationFlags {
			if cmd.Flags().Changed(flag) {
				calib[key] = *calibValues[key]
			}
		}
		if err := observerip.CheckCalibration(calib); err != nil {
			return err
		}
		if !confirm(os.Stdin, cmd.OutOrStdout(), "This will set calibration values on the ObserverIP") {
			return nil
		}
		return c.SetCalibration(cmd.Context(), calib)
	},
}

var setCalibrationDefaultsCmd = &cobra.Command{
	Use:   "setcalibrationdefaults",
	Short: "Restore the factory calibration on the station",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		if !confirm(os.Stdin, cmd.OutOrStdout(), "This will set the default calibration values on the ObserverIP") {
			return nil
		}
		return c.ResetCalibration(cmd.Context())
	},
}

var rebootCmd = &cobra.Command{
	Use:   "reboot",
	Short: "Reboot the station and wait for it to answer probes again",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		if !confirm(os.Stdin, cmd.OutOrStdout(), "This will reboot the ObserverIP") {
			return nil
		}
		return c.Reboot(cmd.Context(), true)
	},
}

var defaultConfigCmd = &cobra.Command{
	Use:   "defaultconfig",
	Short: "Print the default device configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := config.DefaultDeviceYAML(stanzaName)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

// configuredCalibration returns the calibration of --device in --config, or
// the factory calibration when no configuration is given.
func configuredCalibration() (map[string]string, error) {
	if compareFile == "" {
		return observerip.DefaultCalibration(), nil
	}
	p := config.NewYAMLProvider(compareFile)
	devices, err := p.GetDevices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.ObserverIP == nil || (compareDevice != "" && d.Name != compareDevice) {
			continue
		}
		return d.ObserverIP.Calibration, nil
	}
	return nil, fmt.Errorf("no ObserverIP device %q in %s", compareDevice, compareFile)
}

// differingKeys returns, in key order, the configured keys whose value on the
// device differs numerically.
func differingKeys(want, have map[string]string) []string {
	diff := observerip.DiffCalibration(want, have)
	keys := make([]string, 0, len(diff))
	for k := range diff {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
