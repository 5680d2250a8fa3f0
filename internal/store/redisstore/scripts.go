package redisstore

const (
	// readTreeScript returns the leaf at a path and every leaf under it as a
	// flat list of path, value pairs.
	readTreeScript = `
local leaves_key = KEYS[1]  -- {prefix}:leaves
local index_key = KEYS[2]   -- {prefix}:index

local root = ARGV[1]
local out = {}

local own = redis.call('HGET', leaves_key, root)
if own then
  table.insert(out, root)
  table.insert(out, own)
end

local members = redis.call('ZRANGEBYLEX', index_key, '[' .. root .. '/', '(' .. root .. '0')
for _, member in ipairs(members) do
  local value = redis.call('HGET', leaves_key, member)
  if value then
    table.insert(out, member)
    table.insert(out, value)
  end
end

return out
`

	// applyPatchScript clears subtrees and ancestor leaves, then writes the
	// new leaves, in one atomic step.
	applyPatchScript = `
local leaves_key = KEYS[1]  -- {prefix}:leaves
local index_key = KEYS[2]   -- {prefix}:index

local i = 1
local clear_count = tonumber(ARGV[i])
i = i + 1

for _ = 1, clear_count do
  local root = ARGV[i]
  i = i + 1
  redis.call('HDEL', leaves_key, root)
  redis.call('ZREM', index_key, root)
  local members = redis.call('ZRANGEBYLEX', index_key, '[' .. root .. '/', '(' .. root .. '0')
  for _, member in ipairs(members) do
    redis.call('HDEL', leaves_key, member)
    redis.call('ZREM', index_key, member)
  end
end

local ancestor_count = tonumber(ARGV[i])
i = i + 1
for _ = 1, ancestor_count do
  redis.call('HDEL', leaves_key, ARGV[i])
  redis.call('ZREM', index_key, ARGV[i])
  i = i + 1
end

while i < #ARGV do
  redis.call('HSET', leaves_key, ARGV[i], ARGV[i + 1])
  redis.call('ZADD', index_key, 0, ARGV[i])
  i = i + 2
end

return 'OK'
`
)
