package component

// Storage roles of the simulated HDFS stack. Every role runs on the dummy executor,
// which lets a controller drive orchestration load against a node without real services.
var builtinConfigs = []DescriptorConfig{
	storageRole("DATANODE", "hdfs-site", "dfs.datanode.kerberos.principal", "dfs.datanode.keytab.file"),
	storageRole("NAMENODE", "hdfs-site", "dfs.namenode.kerberos.principal", "dfs.namenode.keytab.file"),
	storageRole("SECONDARY_NAMENODE", "hdfs-site", "dfs.secondary.namenode.kerberos.principal", "dfs.secondary.namenode.keytab.file"),
	storageRole("JOURNALNODE", "hdfs-site", "dfs.journalnode.kerberos.principal", "dfs.journalnode.keytab.file"),
	storageRole("NFS_GATEWAY", "hdfs-site", "nfs.kerberos.principal", "nfs.keytab.file"),
	storageRole("ZKFC", "hadoop-env", "hdfs_principal_name", "hdfs_user_keytab"),
	{
		Name: "HDFS_CLIENT",
		Credentials: map[CredentialPurpose]CredentialKey{
			PurposePrincipal: {Section: "hadoop-env", Field: "hdfs_principal_name"},
			PurposeKeytab:    {Section: "hadoop-env", Field: "hdfs_user_keytab"},
		},
		Actions:  []string{"install", "reapply_configs"},
		Executor: ExecutorConfig{Kind: ExecutorDummy},
	},
}

func storageRole(name, section, principalField, keytabField string) DescriptorConfig {
	return DescriptorConfig{
		Name: name,
		Credentials: map[CredentialPurpose]CredentialKey{
			PurposePrincipal: {Section: section, Field: principalField},
			PurposeKeytab:    {Section: section, Field: keytabField},
		},
		Executor: ExecutorConfig{Kind: ExecutorDummy},
	}
}

// BuiltinRegistry returns the registry used when no registry file is configured.
func BuiltinRegistry() (*Registry, error) {
	return NewRegistryFromConfigs(builtinConfigs)
}
