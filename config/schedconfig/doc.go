/*
Package schedconfig reads the JSON configuration of the osiosched server and persists
tunables changed at runtime.

A configuration looks like:

	{
	  "Defaults": {"ReadBatchLimit": 8, "SyncWriteStarvedThreshold": 1},
	  "Devices": {
	    "sda": {"ReadBatchLimit": 16},
	    "sdb": {}
	  },
	  "Driver": {"MaxIOPS": 0, "Burst": 1, "IdleMaxWaitMs": 50},
	  "Transport": "log",
	  "MaxMergeSectors": 256,
	  "AdminAddr": "localhost:9091",
	  "SettingsFile": ".osiodata/settings.json"
	}

Fields left out keep their defaults. A device inherits every tunable from Defaults that
it doesn't set itself. All tunables are clamped into range when resolved.
*/
package schedconfig
