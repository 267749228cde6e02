package component

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type registryFile struct {
	Components []DescriptorConfig `yaml:"components"`
}

// LoadRegistry decodes a YAML role table:
//
//	components:
//	  - name: DATANODE
//	    credentials:
//	      principal: {section: hdfs-site, field: dfs.datanode.kerberos.principal}
//	      keytab: {section: hdfs-site, field: dfs.datanode.keytab.file}
//	    actions: [install, start, stop, status, restart]
//	    executor:
//	      kind: script
//	      commands:
//	        start: /usr/lib/hadoop/sbin/hadoop-daemon.sh start datanode
//	      pid_file: /var/run/hadoop/hdfs/hadoop-hdfs-datanode.pid
func LoadRegistry(r io.Reader) (*Registry, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var file registryFile
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("registry file is empty")
		}
		return nil, fmt.Errorf("failed to decode registry: %w", err)
	}
	if len(file.Components) == 0 {
		return nil, errors.New("registry declares no components")
	}
	return NewRegistryFromConfigs(file.Components)
}

func LoadRegistryFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	registry, err := LoadRegistry(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return registry, nil
}
